package engine

import (
	"sync"
	"time"

	"github.com/bnema/autoseed-cli/internal/domain"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Severity string

const (
	SeverityPending Severity = "pending"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityNetwork Severity = "network"
	SeverityBridge  Severity = "bridge"
)

type LogEntry struct {
	At       time.Time
	Message  string
	Severity Severity
}

// Snapshot is an immutable copy of the run state.
type Snapshot struct {
	Status        Status
	Blocked       bool
	Index         int
	Total         int
	Progress      int
	AccountID     domain.AccountID
	AccountName   string
	Activity      string
	Countdown     int
	Waiting       bool
	SkipAvailable bool
	Log           []LogEntry
}

func (s Snapshot) Paused() bool {
	return s.Status == StatusPaused
}

type EventKind int

const (
	EventLogAppended EventKind = iota
	EventStateChanged
)

// Event is emitted after every mutation. Entry is set for EventLogAppended.
type Event struct {
	Kind     EventKind
	Entry    LogEntry
	Snapshot Snapshot
}

// State is the mutable run state. Only the machine mutates it; everyone else
// reads snapshots or subscribes to events.
type State struct {
	// notifyMu orders mutations with their notifications.
	notifyMu sync.Mutex

	mu   sync.Mutex
	now  func() time.Time
	snap Snapshot

	observers map[int]func(Event)
	nextID    int
}

func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		now:       now,
		snap:      Snapshot{Status: StatusIdle},
		observers: make(map[int]func(Event)),
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *State) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Status == StatusPaused
}

// Subscribe registers fn for every subsequent event. Events arrive one at a
// time in mutation order, on the goroutine that made the change. Observers
// must not block or mutate the state.
func (s *State) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Pause moves a running run to paused.
func (s *State) Pause() bool {
	return s.mutate(func(snap *Snapshot) bool {
		if snap.Status != StatusRunning {
			return false
		}
		snap.Status = StatusPaused
		return true
	})
}

// Resume clears a pause, blocked or not.
func (s *State) Resume() bool {
	return s.mutate(func(snap *Snapshot) bool {
		if snap.Status != StatusPaused {
			return false
		}
		snap.Status = StatusRunning
		snap.Blocked = false
		return true
	})
}

func (s *State) copyLocked() Snapshot {
	snap := s.snap
	snap.Log = append([]LogEntry(nil), s.snap.Log...)
	return snap
}

func (s *State) mutate(fn func(*Snapshot) bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !fn(&s.snap) {
		s.mu.Unlock()
		return false
	}
	event := Event{Kind: EventStateChanged, Snapshot: s.copyLocked()}
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, event)
	return true
}

func (s *State) appendLog(severity Severity, message string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	entry := LogEntry{At: s.now(), Message: message, Severity: severity}
	s.snap.Log = append(s.snap.Log, entry)
	event := Event{Kind: EventLogAppended, Entry: entry, Snapshot: s.copyLocked()}
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, event)
}

func (s *State) observersLocked() []func(Event) {
	observers := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	return observers
}

func notify(observers []func(Event), event Event) {
	for _, fn := range observers {
		fn(event)
	}
}

func (s *State) start(total int) {
	s.mutate(func(snap *Snapshot) bool {
		*snap = Snapshot{Status: StatusRunning, Total: total, Log: snap.Log}
		return true
	})
}

func (s *State) setActivity(activity string) {
	s.mutate(func(snap *Snapshot) bool {
		if snap.Activity == activity {
			return false
		}
		snap.Activity = activity
		return true
	})
}

func (s *State) setItem(index int) {
	s.mutate(func(snap *Snapshot) bool {
		snap.Index = index
		snap.Progress = percent(index, snap.Total)
		return true
	})
}

// advance moves to next unless the run is paused.
func (s *State) advance(next int) bool {
	return s.mutate(func(snap *Snapshot) bool {
		if snap.Status != StatusRunning {
			return false
		}
		snap.Index = next
		snap.Progress = percent(next, snap.Total)
		snap.Countdown = 0
		return true
	})
}

func (s *State) setAccount(account domain.Account) {
	s.mutate(func(snap *Snapshot) bool {
		snap.AccountID = account.ID
		snap.AccountName = account.DisplayName()
		return true
	})
}

func (s *State) setCountdown(remaining int) {
	s.mutate(func(snap *Snapshot) bool {
		snap.Countdown = remaining
		return true
	})
}

func (s *State) setWaiting(waiting, skipAvailable bool) {
	s.mutate(func(snap *Snapshot) bool {
		if snap.Waiting == waiting && snap.SkipAvailable == skipAvailable {
			return false
		}
		snap.Waiting = waiting
		snap.SkipAvailable = skipAvailable
		return true
	})
}

// block forces a pause that only a resume clears.
func (s *State) block() {
	s.mutate(func(snap *Snapshot) bool {
		snap.Status = StatusPaused
		snap.Blocked = true
		return true
	})
}

func (s *State) finish(status Status) {
	s.mutate(func(snap *Snapshot) bool {
		snap.Status = status
		snap.Blocked = false
		snap.Waiting = false
		snap.SkipAvailable = false
		snap.Countdown = 0
		if status == StatusCompleted {
			snap.Index = snap.Total
			snap.Progress = 100
		}
		return true
	})
}

func percent(index, total int) int {
	if total <= 0 {
		return 0
	}
	return index * 100 / total
}
