// Package dimmer is the phase-cut dimmer service: one goroutine serializes
// the three event producers (zero-cross edges, sampler completions, timer
// expiries) onto the controller, and publishes state and firing telemetry
// on the bus.
package dimmer

import (
	"context"

	"dimmercode-go/bus"
	"dimmercode-go/errcode"
	"dimmercode-go/services/dimmer/internal/control"
	"dimmercode-go/services/dimmer/setpoint"
	"dimmercode-go/services/dimmer/timing"
	"dimmercode-go/services/dimmer/trigger"
	"dimmercode-go/services/dimmer/zcross"
	"dimmercode-go/types"
	"dimmercode-go/x/timex"
)

// Topics.
func topicState() bus.Topic   { return bus.T("dimmer", "state") }
func topicSample() bus.Topic  { return bus.T("dimmer", "sample") }
func topicFiring() bus.Topic  { return bus.T("dimmer", "firing") }
func topicControl() bus.Topic { return bus.T("dimmer", "control") }

// Control verbs.
const ctrlSampleNow = "sample_now"

type Service struct {
	conn *bus.Connection
	ctrl *control.Controller

	zc *zcross.Worker
	sp *setpoint.Worker
	tm *trigger.Timer
}

// New assembles the service. drive must already be configured as an output,
// de-asserted.
func New(conn *bus.Connection, plan timing.Plan, drive types.GPIOPin, zc *zcross.Worker, sp *setpoint.Worker, tm *trigger.Timer) *Service {
	return &Service{
		conn: conn,
		ctrl: control.New(plan, drive, tm, sp),
		zc:   zc,
		sp:   sp,
		tm:   tm,
	}
}

// Run starts the workers and processes events until ctx is cancelled.
// On return the output is forced off.
func (s *Service) Run(ctx context.Context) {
	s.zc.Start(ctx)
	s.sp.Start(ctx)

	ctrlSub := s.conn.Subscribe(topicControl())
	defer s.conn.Unsubscribe(ctrlSub)

	s.pubState("running", "")
	// Kick one conversion so the first half-cycle has a sample to read.
	s.sp.StartConversion()

	for {
		select {
		case <-ctx.Done():
			s.ctrl.Shutdown()
			s.pubState("stopped", "context_cancelled")
			return
		case <-s.zc.Events():
			set, err := s.ctrl.OnZeroCross()
			s.pubFiring(set, err)
		case r := <-s.sp.Results():
			if r.Err != nil {
				// Hold the previous latched sample; the loop keeps running
				// on stale data until a conversion succeeds again.
				continue
			}
			s.ctrl.OnSample(r.Raw)
			s.conn.Publish(s.conn.NewMessage(topicSample(), types.SampleValue{Raw: r.Raw, TS: r.TS}, true))
		case <-s.tm.Events():
			s.ctrl.OnTimerExpiry()
		case m := <-ctrlSub.Channel():
			s.handleControl(m)
		}
	}
}

func (s *Service) handleControl(m *bus.Message) {
	c, ok := m.Payload.(types.DimmerControl)
	if !ok {
		s.conn.Reply(m, types.Reply{OK: false, Error: string(errcode.InvalidParams)})
		return
	}
	switch c.Verb {
	case ctrlSampleNow:
		s.sp.StartConversion()
		s.conn.Reply(m, types.Reply{OK: true})
	default:
		s.conn.Reply(m, types.Reply{OK: false, Error: string(errcode.Unsupported)})
	}
}

func (s *Service) pubState(level, status string) {
	s.conn.Publish(s.conn.NewMessage(topicState(), types.DimmerState{
		Level:  level,
		Status: status,
		TS:     timex.NowMs(),
	}, true))
}

func (s *Service) pubFiring(set timing.Setting, err error) {
	rep := types.FiringReport{
		Percent:     set.Percent,
		Enabled:     set.Enabled,
		DelayMicros: set.DelayMicros,
		TS:          timex.NowMs(),
	}
	if set.Enabled {
		rep.Divisor = uint16(set.Divisor)
		rep.Compare = set.Compare
	}
	if err != nil {
		rep.Error = string(errcode.Of(err))
	}
	s.conn.Publish(s.conn.NewMessage(topicFiring(), rep, false))
}
