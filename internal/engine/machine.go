// Package engine sequences a campaign run item by item against the agent
// bridge.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/autoseed-cli/internal/bridge"
	"github.com/bnema/autoseed-cli/internal/domain"
)

// Bridge is the slice of *bridge.Client the machine drives.
type Bridge interface {
	Send(ctx context.Context, msg bridge.Message)
	Request(ctx context.Context, msg bridge.Message, kind bridge.Kind, timeout time.Duration) bridge.Response
	Register(kind bridge.Kind) *bridge.Slot
	Release(slot *bridge.Slot)
}

// Plan is everything a run reads. It is never modified once the run starts.
type Plan struct {
	CampaignID  domain.CampaignID
	Destination string
	Action      domain.ActionKind
	Items       []domain.WorkItem
	Toggles     domain.WorkflowToggles
	// Credentials maps assigned accounts to their decoded credential.
	Credentials map[domain.AccountID]string
}

type Option func(*Machine)

func WithTiming(timing Timing) Option {
	return func(m *Machine) {
		m.timing = timing.withDefaults()
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCompletion registers fn to run once when the run completes. It is not
// called on cancellation.
func WithCompletion(fn func()) Option {
	return func(m *Machine) {
		m.onComplete = fn
	}
}

type Machine struct {
	bridge Bridge
	state  *State
	plan   Plan
	timing Timing
	logger *zap.Logger

	onComplete   func()
	completeOnce sync.Once

	waitMu sync.Mutex
	wait   *actionWait
}

func NewMachine(b Bridge, state *State, plan Plan, opts ...Option) *Machine {
	m := &Machine{
		bridge: b,
		state:  state,
		plan:   plan,
		timing: DefaultTiming(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() *State {
	return m.state
}

func (m *Machine) Pause() bool {
	if !m.state.Pause() {
		return false
	}
	m.log(SeverityInfo, "paused by user")
	return true
}

func (m *Machine) Resume() bool {
	if !m.state.Resume() {
		return false
	}
	m.log(SeverityInfo, "resuming")
	return true
}

func (m *Machine) TogglePause() bool {
	if m.state.Paused() {
		return m.Resume()
	}
	return m.Pause()
}

// Run executes the plan until it completes or ctx is cancelled and returns the
// terminal status.
func (m *Machine) Run(ctx context.Context) Status {
	items := m.plan.Items
	m.state.start(len(items))
	m.log(SeverityBridge, fmt.Sprintf("starting %s run with %d items", m.modeName(), len(items)))

	m.bridge.Send(ctx, bridge.Ping{})
	if !m.sleep(ctx, m.timing.PingSettle) {
		return m.cancelled()
	}
	m.probeTarget(ctx)

	for i, item := range items {
		if ctx.Err() != nil {
			return m.cancelled()
		}
		m.state.setItem(i)

		if !m.pauseGate(ctx) {
			return m.cancelled()
		}

		if item.Account != nil {
			if !m.activate(ctx, *item.Account) {
				return m.cancelled()
			}
		}

		if !m.sleep(ctx, m.timing.ReadyDelay) {
			return m.cancelled()
		}

		if m.plan.Toggles.PostingEnabled {
			if !m.dispatch(ctx, item) {
				return m.cancelled()
			}
		}

		if m.plan.Toggles.IdleInteractionEnabled {
			if !m.idleWalk(ctx, item) {
				return m.cancelled()
			}
		}

		if i < len(items)-1 {
			if !m.countdown(ctx) {
				return m.cancelled()
			}
		}

		for !m.state.advance(i + 1) {
			m.state.setActivity("paused")
			if !m.sleep(ctx, m.timing.PausePoll) {
				return m.cancelled()
			}
		}
	}

	m.state.setActivity("done")
	m.log(SeveritySuccess, "campaign completed")
	m.state.finish(StatusCompleted)
	m.completeOnce.Do(func() {
		if m.onComplete != nil {
			m.onComplete()
		}
	})

	return StatusCompleted
}

func (m *Machine) modeName() string {
	if m.plan.Action == domain.ActionStatus {
		return "trust"
	}
	return "seeding"
}

func (m *Machine) probeTarget(ctx context.Context) {
	if m.plan.Destination == "" {
		return
	}

	resp := m.bridge.Request(ctx, bridge.TestTarget{URL: m.plan.Destination}, bridge.KindTargetResult, m.timing.IdentityTimeout)
	if !resp.OK() {
		m.log(SeverityNetwork, fmt.Sprintf("target check %s", resp.Outcome))
		return
	}
	if result, ok := resp.Message.(bridge.TargetResult); ok && result.Found {
		m.log(SeveritySuccess, "target verified")
		return
	}
	m.log(SeverityNetwork, "target not found by agent")
}

// activate switches the agent to account and loops until identity is
// confirmed. Each failed round blocks the run until resumed.
func (m *Machine) activate(ctx context.Context, account domain.Account) bool {
	for {
		if !m.pauseGate(ctx) {
			return false
		}

		ready, ok := m.switchAccount(ctx, account)
		if !ok {
			return false
		}
		if ready {
			m.log(SeveritySuccess, "browser ready")
			return true
		}

		m.state.setActivity("blocked: agent window not found")
		m.log(SeverityNetwork, fmt.Sprintf("blocked: no identity reported for %s; check the agent window and resume to retry", account.DisplayName()))
		m.state.block()
	}
}

// switchAccount reports whether identity was confirmed; ok is false when ctx
// ended.
func (m *Machine) switchAccount(ctx context.Context, account domain.Account) (ready bool, ok bool) {
	credential := m.plan.Credentials[account.ID]
	if credential == "" {
		m.log(SeverityError, fmt.Sprintf("no credential for %s", account.DisplayName()))
		return false, true
	}

	m.state.setAccount(account)
	m.state.setActivity("opening browser for " + account.DisplayName())
	m.log(SeverityBridge, fmt.Sprintf("opening window for %s", account.DisplayName()))
	m.bridge.Send(ctx, bridge.SwitchAccount{Credential: credential, Destination: m.plan.Destination})

	if !m.sleep(ctx, m.timing.SwitchSettle) {
		return false, false
	}

	return m.verifyIdentity(ctx, account)
}

func (m *Machine) verifyIdentity(ctx context.Context, account domain.Account) (verified bool, ok bool) {
	attempts := m.timing.IdentityAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt == 1 || attempt%2 == 0 {
			m.state.setActivity(fmt.Sprintf("waiting for page load (%d)", attempt))
			m.log(SeverityPending, "waiting for page load")
		}

		resp := m.bridge.Request(ctx, bridge.CheckIdentity{}, bridge.KindIdentityReport, m.timing.IdentityTimeout)
		if resp.Outcome == bridge.OutcomeCancelled || ctx.Err() != nil {
			return false, false
		}

		if report, isReport := resp.Message.(bridge.IdentityReport); resp.OK() && isReport && report.UID != "" {
			name := report.DisplayName
			if name == "" {
				name = report.UID
			}
			if account.MatchesIdentity(report.UID) {
				m.log(SeveritySuccess, fmt.Sprintf("verified: %s", name))
			} else {
				m.log(SeverityWarning, fmt.Sprintf("signed in as %s, expected %s; accepted", name, account.DisplayName()))
				m.logger.Warn("identity mismatch accepted",
					zap.String("expected", string(account.ID)),
					zap.String("reported", report.UID),
				)
			}
			return true, true
		}

		if attempt < attempts && !m.sleep(ctx, m.timing.IdentityBackoff) {
			return false, false
		}
	}

	return false, true
}

func (m *Machine) dispatch(ctx context.Context, item domain.WorkItem) bool {
	author := authorOf(item)
	status := m.plan.Action == domain.ActionStatus
	if status {
		m.state.setActivity("writing status")
	} else {
		m.state.setActivity("writing comment")
	}
	m.log(SeverityBridge, fmt.Sprintf("%s: composing content", author.DisplayName()))

	msg := bridge.Execute{
		Action:      m.plan.Action,
		Text:        item.Text,
		Destination: m.plan.Destination,
		Metadata: bridge.ExecuteMetadata{
			CampaignID:    string(m.plan.CampaignID),
			AccountName:   author.DisplayName(),
			AccountAvatar: author.Avatar,
			StatusPost:    status,
			Humanize:      bridge.HumanizeFrom(m.plan.Toggles.Humanize),
		},
	}

	return m.reportAction(m.awaitAction(ctx, msg, m.timing.ActionDeadline), m.timing.ActionDeadline)
}

func (m *Machine) idleWalk(ctx context.Context, item domain.WorkItem) bool {
	author := authorOf(item)
	idle := m.plan.Toggles.IdleDuration
	m.state.setActivity(fmt.Sprintf("browsing feed for %s", idle))
	m.log(SeverityBridge, "random interaction")

	msg := bridge.Execute{
		Action:      domain.ActionIdleWalk,
		Destination: m.plan.Destination,
		Metadata: bridge.ExecuteMetadata{
			CampaignID:    string(m.plan.CampaignID),
			AccountName:   author.DisplayName(),
			AccountAvatar: author.Avatar,
			IdleSeconds:   int(idle / time.Second),
			Humanize:      bridge.HumanizeFrom(m.plan.Toggles.Humanize),
		},
	}

	deadline := idle + m.timing.IdleMargin
	return m.reportAction(m.awaitAction(ctx, msg, deadline), deadline)
}

func (m *Machine) reportAction(trigger Trigger, deadline time.Duration) bool {
	switch trigger {
	case TriggerComplete:
		m.log(SeveritySuccess, "action completed")
	case TriggerSkip:
		m.log(SeverityInfo, "step skipped by user")
	case TriggerDeadline:
		m.log(SeverityError, fmt.Sprintf("no completion after %s, skipping", deadline))
	case TriggerSuperseded:
		m.log(SeverityWarning, "completion wait superseded, moving on")
	case TriggerCancelled:
		return false
	}
	return true
}

func (m *Machine) countdown(ctx context.Context) bool {
	delay := m.plan.Toggles.InterItemDelay
	if delay <= 0 {
		return true
	}

	ticks := int((delay + m.timing.Tick - 1) / m.timing.Tick)
	m.state.setActivity(fmt.Sprintf("resting %s", delay))
	m.log(SeverityPending, fmt.Sprintf("waiting %s before next item", delay))

	for remaining := ticks; remaining > 0; remaining-- {
		if !m.pauseGate(ctx) {
			return false
		}
		m.state.setCountdown(remaining)
		if !m.sleep(ctx, m.timing.Tick) {
			return false
		}
	}
	m.state.setCountdown(0)

	return true
}

// pauseGate polls until the run is no longer paused. It returns false once ctx
// is done.
func (m *Machine) pauseGate(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	for m.state.Paused() {
		m.state.setActivity("paused")
		if !m.sleep(ctx, m.timing.PausePoll) {
			return false
		}
	}
	return true
}

func (m *Machine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Machine) cancelled() Status {
	m.state.setActivity("cancelled")
	m.log(SeverityInfo, "run cancelled")
	m.state.finish(StatusCancelled)
	return StatusCancelled
}

func (m *Machine) log(severity Severity, message string) {
	m.state.appendLog(severity, message)
	m.logger.Debug(message,
		zap.String("severity", string(severity)),
		zap.String("campaign_id", string(m.plan.CampaignID)),
	)
}

func authorOf(item domain.WorkItem) domain.Account {
	if item.Account != nil {
		return *item.Account
	}
	return domain.Account{Name: "fallback persona"}
}
