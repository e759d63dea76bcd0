package timex

import "testing"

func TestPeriodFromHz(t *testing.T) {
	if PeriodFromHz(100) != 10_000_000 {
		t.Fatal("100 Hz must give a 10 ms period")
	}
	if PeriodFromHz(0) == 0 {
		t.Fatal("zero frequency must not divide by zero")
	}
}

func TestHalfPeriodMicros(t *testing.T) {
	if HalfPeriodMicros(50) != 10_000 {
		t.Fatal("50 Hz mains must give a 10 ms half period")
	}
	if HalfPeriodMicros(60) != 8_333 {
		t.Fatal("60 Hz mains must give a 8333 µs half period")
	}
}
