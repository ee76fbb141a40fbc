package engine

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/autoseed-cli/internal/bridge"
)

type Trigger int

const (
	TriggerComplete Trigger = iota
	TriggerSkip
	TriggerDeadline
	TriggerSuperseded
	TriggerCancelled
)

func (t Trigger) String() string {
	switch t {
	case TriggerComplete:
		return "complete"
	case TriggerSkip:
		return "skip"
	case TriggerDeadline:
		return "deadline"
	case TriggerSuperseded:
		return "superseded"
	case TriggerCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// actionWait is consumed by the first trigger; later triggers are no-ops.
type actionWait struct {
	once sync.Once
	done chan Trigger
}

func newActionWait() *actionWait {
	return &actionWait{done: make(chan Trigger, 1)}
}

func (w *actionWait) fire(trigger Trigger) bool {
	fired := false
	w.once.Do(func() {
		w.done <- trigger
		fired = true
	})
	return fired
}

// awaitAction sends msg and waits for the agent's action-complete signal, a
// manual skip or the deadline, whichever comes first.
func (m *Machine) awaitAction(ctx context.Context, msg bridge.Message, deadline time.Duration) Trigger {
	slot := m.bridge.Register(bridge.KindActionComplete)
	defer m.bridge.Release(slot)

	wait := newActionWait()
	m.armWait(wait)
	defer m.armWait(nil)

	m.state.setWaiting(true, false)
	defer m.state.setWaiting(false, false)

	m.bridge.Send(ctx, msg)

	deadlineTimer := time.NewTimer(deadline)
	defer deadlineTimer.Stop()
	graceTimer := time.NewTimer(m.timing.SkipGrace)
	defer graceTimer.Stop()

	for {
		select {
		case trigger := <-wait.done:
			return trigger
		case resp := <-slot.Done():
			if resp.Outcome == bridge.OutcomeReceived {
				wait.fire(TriggerComplete)
			} else {
				wait.fire(TriggerSuperseded)
			}
			return <-wait.done
		case <-graceTimer.C:
			m.state.setWaiting(true, true)
		case <-deadlineTimer.C:
			wait.fire(TriggerDeadline)
			return <-wait.done
		case <-ctx.Done():
			wait.fire(TriggerCancelled)
			return <-wait.done
		}
	}
}

func (m *Machine) armWait(wait *actionWait) {
	m.waitMu.Lock()
	m.wait = wait
	m.waitMu.Unlock()
}

// Skip consumes the pending action wait. A skip is offered once the skip
// grace has elapsed or while the run is paused; otherwise, or when nothing is
// waiting, it reports false.
func (m *Machine) Skip() bool {
	m.waitMu.Lock()
	wait := m.wait
	m.waitMu.Unlock()

	if wait == nil {
		return false
	}
	if snap := m.state.Snapshot(); !snap.SkipAvailable && !snap.Paused() {
		return false
	}
	return wait.fire(TriggerSkip)
}
