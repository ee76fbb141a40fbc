package bridge

import "sync"

type Outcome int

const (
	OutcomeReceived Outcome = iota
	OutcomeTimedOut
	OutcomeInvalid
	OutcomeSuperseded
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReceived:
		return "received"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Response is the result of waiting on a slot. Message is set only when
// Outcome is OutcomeReceived.
type Response struct {
	Outcome Outcome
	Message Message
}

func (r Response) OK() bool {
	return r.Outcome == OutcomeReceived
}

// Slot is a single-shot resolver for one kind. The first Resolve wins; the
// value is readable exactly once from Done.
type Slot struct {
	kind Kind
	once sync.Once
	done chan Response
}

func newSlot(kind Kind) *Slot {
	return &Slot{kind: kind, done: make(chan Response, 1)}
}

func (s *Slot) Kind() Kind {
	return s.kind
}

func (s *Slot) Done() <-chan Response {
	return s.done
}

// Resolve reports whether this call consumed the slot.
func (s *Slot) Resolve(resp Response) bool {
	resolved := false
	s.once.Do(func() {
		s.done <- resp
		resolved = true
	})
	return resolved
}

// Mailbox holds at most one pending slot per kind.
type Mailbox struct {
	mu    sync.Mutex
	slots map[Kind]*Slot
}

func NewMailbox() *Mailbox {
	return &Mailbox{slots: make(map[Kind]*Slot)}
}

// Register installs a fresh slot for kind. A slot already pending for the same
// kind resolves as superseded.
func (m *Mailbox) Register(kind Kind) *Slot {
	slot := newSlot(kind)

	m.mu.Lock()
	previous := m.slots[kind]
	m.slots[kind] = slot
	m.mu.Unlock()

	if previous != nil {
		previous.Resolve(Response{Outcome: OutcomeSuperseded})
	}

	return slot
}

// TakeIfPending removes and returns the pending slot for kind.
func (m *Mailbox) TakeIfPending(kind Kind) (*Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[kind]
	if ok {
		delete(m.slots, kind)
	}
	return slot, ok
}

// Release drops slot if it is still the pending one for its kind.
func (m *Mailbox) Release(slot *Slot) {
	if slot == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots[slot.kind] == slot {
		delete(m.slots, slot.kind)
	}
}

func (m *Mailbox) Pending(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.slots[kind]
	return ok
}

// Deliver hands msg to the pending slot of its kind. It reports false when
// nobody was waiting, in which case msg is dropped.
func (m *Mailbox) Deliver(msg Message) bool {
	slot, ok := m.TakeIfPending(msg.Kind())
	if !ok {
		return false
	}
	return slot.Resolve(Response{Outcome: OutcomeReceived, Message: msg})
}

// Reject resolves the pending slot for kind as invalid.
func (m *Mailbox) Reject(kind Kind) bool {
	slot, ok := m.TakeIfPending(kind)
	if !ok {
		return false
	}
	return slot.Resolve(Response{Outcome: OutcomeInvalid})
}
