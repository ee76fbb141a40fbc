package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/engine"
)

const DefaultSchedulerInterval = 30 * time.Second

// runStarter is the part of RunController the scheduler drives.
type runStarter interface {
	Active() bool
	Start(ctx context.Context, req StartRequest) (RunID, error)
}

// Scheduler starts due campaigns when no run is active.
type Scheduler struct {
	campaigns *CampaignService
	runs      runStarter
	interval  time.Duration
	logger    *zap.Logger
	observe   func(engine.Event)
}

func NewScheduler(campaigns *CampaignService, runs runStarter, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{campaigns: campaigns, runs: runs, interval: interval, logger: logger.Named("scheduler")}
}

// WithObserver subscribes fn to every run the scheduler starts.
func (s *Scheduler) WithObserver(fn func(engine.Event)) *Scheduler {
	s.observe = fn
	return s
}

// Run checks every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Warn("scheduled start failed", zap.Error(err))
			}
		}
	}
}

// Tick starts the next due campaign, if any. It returns the started campaign id.
func (s *Scheduler) Tick(ctx context.Context) (domain.CampaignID, error) {
	if s.runs.Active() {
		return "", nil
	}

	campaign, ok, err := s.campaigns.NextDue(ctx)
	if err != nil || !ok {
		return "", err
	}

	if err := s.campaigns.ClearSchedule(ctx, campaign.ID); err != nil {
		return "", err
	}

	if _, err := s.runs.Start(ctx, StartRequest{Campaign: campaign, Observe: s.observe}); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			if err := s.campaigns.RestoreSchedule(ctx, campaign.ID, campaign.ScheduledAt); err != nil {
				return "", err
			}
			return "", nil
		}
		return "", err
	}

	s.logger.Info("scheduled campaign started", zap.String("campaign_id", string(campaign.ID)), zap.String("title", campaign.Title))
	return campaign.ID, nil
}
