package engine

import "time"

// Timing holds every delay the machine observes. Tests shrink them.
type Timing struct {
	PausePoll        time.Duration
	PingSettle       time.Duration
	SwitchSettle     time.Duration
	IdentityAttempts int
	IdentityTimeout  time.Duration
	IdentityBackoff  time.Duration
	ReadyDelay       time.Duration
	ActionDeadline   time.Duration
	IdleMargin       time.Duration
	SkipGrace        time.Duration
	Tick             time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		PausePoll:        500 * time.Millisecond,
		PingSettle:       500 * time.Millisecond,
		SwitchSettle:     3 * time.Second,
		IdentityAttempts: 6,
		IdentityTimeout:  2500 * time.Millisecond,
		IdentityBackoff:  time.Second,
		ReadyDelay:       time.Second,
		ActionDeadline:   45 * time.Second,
		IdleMargin:       20 * time.Second,
		SkipGrace:        8 * time.Second,
		Tick:             time.Second,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.PausePoll <= 0 {
		t.PausePoll = d.PausePoll
	}
	if t.PingSettle < 0 {
		t.PingSettle = 0
	}
	if t.SwitchSettle < 0 {
		t.SwitchSettle = 0
	}
	if t.IdentityAttempts <= 0 {
		t.IdentityAttempts = d.IdentityAttempts
	}
	if t.IdentityTimeout <= 0 {
		t.IdentityTimeout = d.IdentityTimeout
	}
	if t.IdentityBackoff < 0 {
		t.IdentityBackoff = 0
	}
	if t.ReadyDelay < 0 {
		t.ReadyDelay = 0
	}
	if t.ActionDeadline <= 0 {
		t.ActionDeadline = d.ActionDeadline
	}
	if t.IdleMargin < 0 {
		t.IdleMargin = 0
	}
	if t.SkipGrace <= 0 {
		t.SkipGrace = d.SkipGrace
	}
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	return t
}
