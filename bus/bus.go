// Package bus is a small in-process pub/sub fabric. Topics are matched
// exactly; each subscription owns a buffered channel and a full queue drops
// the oldest message, so a depth-1 queue behaves as a latest-wins mailbox.
package bus

import (
	"strings"
	"sync"
)

// Topic is a sequence of path elements, e.g. T("dimmer", "sample").
type Topic []string

// T builds a Topic from its elements.
func T(parts ...string) Topic { return Topic(parts) }

func (t Topic) key() string      { return strings.Join(t, "/") }
func (t Topic) String() string   { return t.key() }
func (t Topic) Len() int         { return len(t) }
func (t Topic) At(i int) string  { return t[i] }
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender asked for a reply.
func (m *Message) CanReply() bool { return len(m.ReplyTo) > 0 }

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type Bus struct {
	mu       sync.RWMutex
	subs     map[string][]*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a bus with the given per-subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 1
	}
	return &Bus{
		subs:     map[string][]*Subscription{},
		retained: map[string]*Message{},
		qLen:     queueLen,
	}
}

// Publish delivers a message to all subscribers of its exact topic.
func (b *Bus) Publish(msg *Message) {
	k := msg.Topic.key()
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[k] {
		deliver(sub.ch, msg)
	}

	if msg.Retained {
		if msg.Payload == nil {
			delete(b.retained, k)
		} else {
			b.retained[k] = msg
		}
	}
}

// deliver never blocks: a full queue loses its oldest entry first.
func deliver(ch chan *Message, msg *Message) {
	select {
	case ch <- msg:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func (b *Bus) subscribe(sub *Subscription) {
	k := sub.topic.key()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[k] = append(b.subs[k], sub)
	if m := b.retained[k]; m != nil {
		deliver(sub.ch, m)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	k := sub.topic.key()
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[k]
	for i, s := range list {
		if s == sub {
			b.subs[k] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[k]) == 0 {
		delete(b.subs, k)
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Reply publishes payload to the message's ReplyTo topic, if any.
func (c *Connection) Reply(to *Message, payload any) {
	if !to.CanReply() {
		return
	}
	c.bus.Publish(&Message{Topic: to.ReplyTo, Payload: payload})
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.bus.subscribe(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection. Calling it
// again, or after Disconnect, is a no-op.
func (c *Connection) Unsubscribe(sub *Subscription) {
	found := false
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}
