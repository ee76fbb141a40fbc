package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/engine"
)

func TestSchedulerTickStartsDueCampaignOnce(t *testing.T) {
	t.Parallel()

	f := newRunFixture(t, nil)
	require.NoError(t, f.campaignDB.Save(context.Background(), domain.Campaign{
		ID:          "due",
		TargetURL:   "https://example.test",
		Status:      domain.CampaignScheduled,
		ScheduledAt: campaignNow.Add(-time.Minute),
		Items:       []domain.WorkItem{{ID: "1", Text: "hello"}},
		Toggles:     domain.WorkflowToggles{PostingEnabled: true},
	}))

	var observed atomic.Int32
	scheduler := NewScheduler(f.campaigns, f.controller, time.Hour, nil).WithObserver(func(engine.Event) {
		observed.Add(1)
	})

	started, err := scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignID("due"), started)

	status, err := f.controller.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, status)
	assert.Positive(t, observed.Load())

	started, err = scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, started)

	stored, err := f.campaigns.Get(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, stored.Status)
}

func TestSchedulerTickSkipsWhileRunActive(t *testing.T) {
	t.Parallel()

	f := newRunFixture(t, nil)
	campaign := storedCampaign(t, f, "a", "b")
	campaign.Toggles.InterItemDelay = time.Second
	require.NoError(t, f.campaignDB.Save(context.Background(), domain.Campaign{
		ID:          "due",
		TargetURL:   "https://example.test",
		Status:      domain.CampaignScheduled,
		ScheduledAt: campaignNow.Add(-time.Minute),
		Items:       []domain.WorkItem{{ID: "1", Text: "hello"}},
	}))

	_, err := f.controller.Start(context.Background(), StartRequest{Campaign: campaign})
	require.NoError(t, err)

	scheduler := NewScheduler(f.campaigns, f.controller, 0, nil)
	started, err := scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, started)

	require.NoError(t, f.controller.Cancel())
	_, err = f.controller.Wait(context.Background())
	require.NoError(t, err)

	stored, err := f.campaigns.Get(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignScheduled, stored.Status)
}

// busyRuns loses every start to a run that began after the Active check.
type busyRuns struct {
	starts atomic.Int32
}

func (b *busyRuns) Active() bool { return false }

func (b *busyRuns) Start(context.Context, StartRequest) (RunID, error) {
	b.starts.Add(1)
	return "", ErrRunInProgress
}

func TestSchedulerTickKeepsScheduleWhenStartLosesRace(t *testing.T) {
	t.Parallel()

	f := newRunFixture(t, nil)
	dueAt := campaignNow.Add(-time.Minute)
	require.NoError(t, f.campaignDB.Save(context.Background(), domain.Campaign{
		ID:          "due",
		TargetURL:   "https://example.test",
		Status:      domain.CampaignScheduled,
		ScheduledAt: dueAt,
		Items:       []domain.WorkItem{{ID: "1", Text: "hello"}},
	}))

	runs := &busyRuns{}
	scheduler := NewScheduler(f.campaigns, runs, 0, nil)

	started, err := scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, started)
	assert.Equal(t, int32(1), runs.starts.Load())

	stored, err := f.campaigns.Get(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignScheduled, stored.Status)
	assert.True(t, dueAt.Equal(stored.ScheduledAt))

	_, err = scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), runs.starts.Load(), "the campaign is still due on the next tick")
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	t.Parallel()

	f := newRunFixture(t, nil)
	scheduler := NewScheduler(f.campaigns, f.controller, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, scheduler.Run(ctx))
}
