package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/engine"
	"github.com/bnema/autoseed-cli/internal/ports"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrNoActiveRun   = errors.New("no active run")
)

const defaultGeneratedItems = 5

type RunID string

type StartRequest struct {
	Campaign domain.Campaign
	// Accounts replaces the campaign's own selection and its stored item
	// assignments when non-empty.
	Accounts []domain.Account
	// Count is the number of items to generate when the campaign has none.
	Count int
	// Observe is subscribed before the run starts, so it sees every event.
	Observe func(engine.Event)
}

type run struct {
	id         RunID
	campaignID domain.CampaignID
	machine    *engine.Machine
	cancel     context.CancelFunc
	done       chan struct{}
	status     engine.Status
}

type RunController struct {
	bridge    engine.Bridge
	accounts  *AccountService
	campaigns *CampaignService
	timing    engine.Timing
	clock     ports.Clock
	logger    *zap.Logger
	rng       domain.Shuffler

	mu       sync.Mutex
	current  *run
	starting bool
}

type RunControllerOption func(*RunController)

func WithRunTiming(timing engine.Timing) RunControllerOption {
	return func(c *RunController) {
		c.timing = timing
	}
}

func WithRunLogger(logger *zap.Logger) RunControllerOption {
	return func(c *RunController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRunShuffler(rng domain.Shuffler) RunControllerOption {
	return func(c *RunController) {
		c.rng = rng
	}
}

func NewRunController(b engine.Bridge, accounts *AccountService, campaigns *CampaignService, clock ports.Clock, opts ...RunControllerOption) *RunController {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	c := &RunController{
		bridge:    b,
		accounts:  accounts,
		campaigns: campaigns,
		timing:    engine.DefaultTiming(),
		clock:     clock,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start prepares the plan and runs it in the background. Content generation
// errors are returned as is so callers can tell a rejected key apart.
func (c *RunController) Start(ctx context.Context, req StartRequest) (RunID, error) {
	if err := c.reserve(); err != nil {
		return "", err
	}

	plan, err := c.prepare(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		return "", err
	}

	id := RunID(uuid.NewString())
	logger := c.logger.With(zap.String("run_id", string(id)), zap.String("campaign_id", string(req.Campaign.ID)))

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:         id,
		campaignID: req.Campaign.ID,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	state := engine.NewState(c.clock.Now)
	if req.Observe != nil {
		state.Subscribe(req.Observe)
	}

	r.machine = engine.NewMachine(c.bridge, state, plan,
		engine.WithTiming(c.timing),
		engine.WithLogger(logger),
		engine.WithCompletion(func() {
			c.markCompleted(runCtx, logger, req.Campaign.ID)
		}),
	)
	c.current = r

	go func() {
		defer close(r.done)
		defer cancel()

		status := r.machine.Run(runCtx)

		c.mu.Lock()
		r.status = status
		c.mu.Unlock()

		logger.Info("run finished", zap.String("status", string(status)))
	}()

	logger.Info("run started", zap.Int("items", len(plan.Items)))
	return id, nil
}

// reserve claims the controller while a plan is prepared outside the lock.
func (c *RunController) reserve() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.starting || (c.current != nil && !c.current.finished()) {
		return ErrRunInProgress
	}
	c.starting = true
	return nil
}

func (c *RunController) prepare(ctx context.Context, req StartRequest) (engine.Plan, error) {
	campaign := req.Campaign

	items := campaign.Items
	if len(items) == 0 {
		count := req.Count
		if count <= 0 {
			count = defaultGeneratedItems
		}
		generated, err := c.campaigns.GenerateItems(ctx, campaign, count)
		if err != nil {
			return engine.Plan{}, err
		}
		items = generated
	}

	selected := req.Accounts
	if len(selected) > 0 {
		items = unassigned(items)
	} else {
		var err error
		selected, err = c.campaigns.SelectedAccounts(ctx, campaign)
		if err != nil {
			return engine.Plan{}, err
		}
	}

	known, err := c.accounts.List(ctx)
	if err != nil {
		return engine.Plan{}, err
	}
	byID := make(map[domain.AccountID]domain.Account, len(known)+len(selected))
	for _, account := range known {
		byID[account.ID] = account
	}
	for _, account := range selected {
		if _, ok := byID[account.ID]; !ok {
			byID[account.ID] = account
		}
	}

	items = domain.AssignAccounts(items, selected, c.rng)
	credentials := make(map[domain.AccountID]string)
	for i := range items {
		if items[i].Account == nil {
			continue
		}
		account, ok := byID[items[i].Account.ID]
		if !ok {
			continue
		}
		items[i].Account = &account

		if _, resolved := credentials[account.ID]; resolved {
			continue
		}
		raw, err := c.accounts.ResolveCredential(ctx, account)
		if err != nil {
			c.logger.Warn("credential unavailable", zap.String("account_id", string(account.ID)), zap.Error(err))
			continue
		}
		credentials[account.ID] = raw
	}

	return engine.Plan{
		CampaignID:  campaign.ID,
		Destination: campaign.TargetURL,
		Action:      campaign.ActionKind(),
		Items:       items,
		Toggles:     campaign.Toggles,
		Credentials: credentials,
	}, nil
}

func unassigned(items []domain.WorkItem) []domain.WorkItem {
	result := make([]domain.WorkItem, len(items))
	copy(result, items)
	for i := range result {
		result[i].Account = nil
	}
	return result
}

func (c *RunController) markCompleted(ctx context.Context, logger *zap.Logger, id domain.CampaignID) {
	if id == "" || c.campaigns == nil {
		return
	}
	if err := c.campaigns.MarkCompleted(ctx, id); err != nil && !errors.Is(err, domain.ErrCampaignNotFound) {
		logger.Error("mark campaign completed", zap.Error(err))
	}
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (c *RunController) active() (*run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.finished() {
		return nil, ErrNoActiveRun
	}
	return c.current, nil
}

// Active reports whether a run is in progress or being prepared.
func (c *RunController) Active() bool {
	c.mu.Lock()
	starting := c.starting
	c.mu.Unlock()

	if starting {
		return true
	}
	_, err := c.active()
	return err == nil
}

func (c *RunController) Pause() error {
	r, err := c.active()
	if err != nil {
		return err
	}
	if !r.machine.Pause() {
		return fmt.Errorf("run %s is not running", r.id)
	}
	return nil
}

func (c *RunController) Resume() error {
	r, err := c.active()
	if err != nil {
		return err
	}
	if !r.machine.Resume() {
		return fmt.Errorf("run %s is not paused", r.id)
	}
	return nil
}

func (c *RunController) TogglePause() error {
	r, err := c.active()
	if err != nil {
		return err
	}
	r.machine.TogglePause()
	return nil
}

// Skip releases the current action wait. It reports false when nothing is
// waiting.
func (c *RunController) Skip() bool {
	r, err := c.active()
	if err != nil {
		return false
	}
	return r.machine.Skip()
}

func (c *RunController) Cancel() error {
	r, err := c.active()
	if err != nil {
		return err
	}
	r.cancel()
	return nil
}

// Snapshot returns the state of the latest run, finished or not.
func (c *RunController) Snapshot() (engine.Snapshot, bool) {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r == nil {
		return engine.Snapshot{}, false
	}
	return r.machine.State().Snapshot(), true
}

func (c *RunController) Subscribe(fn func(engine.Event)) (func(), error) {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r == nil {
		return nil, ErrNoActiveRun
	}
	return r.machine.State().Subscribe(fn), nil
}

// Wait blocks until the latest run finishes and returns its terminal status.
func (c *RunController) Wait(ctx context.Context) (engine.Status, error) {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r == nil {
		return "", ErrNoActiveRun
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return r.status, nil
}
