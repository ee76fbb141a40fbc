package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

const manualTitlePrefix = "[Manual] "

type CreateCampaignCommand struct {
	Title       string
	TargetURL   string
	PostContent string
	Platform    domain.Platform
	Sentiment   domain.Sentiment
	Style       domain.ContentStyle
	// Lines are used verbatim, one item per non-empty line. Without lines the
	// generator produces Count items from PostContent.
	Lines          []string
	Count          int
	Accounts       []domain.AccountID
	RandomAccounts int
	Trust          bool
	Toggles        domain.WorkflowToggles
	ScheduledAt    time.Time
}

type CampaignService struct {
	accounts  ports.AccountRepository
	campaigns ports.CampaignRepository
	generator ports.ContentGenerator
	clock     ports.Clock
	rng       domain.Shuffler
}

func NewCampaignService(accounts ports.AccountRepository, campaigns ports.CampaignRepository, generator ports.ContentGenerator, clock ports.Clock) *CampaignService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &CampaignService{accounts: accounts, campaigns: campaigns, generator: generator, clock: clock}
}

// WithShuffler fixes the random source used for account selection.
func (s *CampaignService) WithShuffler(rng domain.Shuffler) *CampaignService {
	s.rng = rng
	return s
}

func (s *CampaignService) Create(ctx context.Context, cmd CreateCampaignCommand) (domain.Campaign, error) {
	now := s.clock.Now()

	status := domain.CampaignGenerated
	if !cmd.ScheduledAt.IsZero() {
		if !cmd.ScheduledAt.After(now) {
			return domain.Campaign{}, domain.ErrScheduleInPast
		}
		status = domain.CampaignScheduled
	}

	texts, manual, err := s.contentFor(ctx, cmd)
	if err != nil {
		return domain.Campaign{}, err
	}

	items := domain.ItemsFromLines(texts, func() domain.WorkItemID {
		return domain.WorkItemID(uuid.NewString())
	})
	if len(items) == 0 {
		return domain.Campaign{}, domain.ErrNoWorkItems
	}

	selected, err := s.selectAccounts(ctx, cmd)
	if err != nil {
		return domain.Campaign{}, err
	}

	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		if manual {
			title = domain.CampaignTitle(manualTitlePrefix, strings.Join(cmd.Lines, "\n"))
		} else {
			title = domain.CampaignTitle("", cmd.PostContent)
		}
	}

	toggles := cmd.Toggles
	toggles.Trust = toggles.Trust || cmd.Trust

	campaign := domain.Campaign{
		ID:          domain.CampaignID(uuid.NewString()),
		Title:       title,
		TargetURL:   strings.TrimSpace(cmd.TargetURL),
		PostContent: cmd.PostContent,
		Platform:    cmd.Platform,
		Sentiment:   cmd.Sentiment,
		Style:       cmd.Style,
		Status:      status,
		Items:       domain.AssignAccounts(items, selected, s.rng),
		Toggles:     toggles,
		CreatedAt:   now,
		ScheduledAt: cmd.ScheduledAt,
		UpdatedAt:   now,
	}
	for _, account := range selected {
		campaign.Accounts = append(campaign.Accounts, account.ID)
	}
	campaign.NormalizeSelection()

	if err := campaign.Validate(); err != nil {
		return domain.Campaign{}, err
	}

	if err := s.campaigns.Save(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("save campaign: %w", err)
	}

	return campaign, nil
}

func (s *CampaignService) contentFor(ctx context.Context, cmd CreateCampaignCommand) ([]string, bool, error) {
	if len(cmd.Lines) > 0 {
		return cmd.Lines, true, nil
	}
	if strings.TrimSpace(cmd.PostContent) == "" {
		return nil, false, domain.ErrNoWorkItems
	}
	if s.generator == nil {
		return nil, false, fmt.Errorf("%w: no content generator configured", domain.ErrGenerationFailed)
	}

	count := cmd.Count
	if count <= 0 {
		count = 5
	}

	texts, err := s.generator.Generate(ctx, ports.GenerateRequest{
		Topic:     cmd.PostContent,
		Platform:  cmd.Platform,
		Sentiment: cmd.Sentiment,
		Style:     cmd.Style,
		Count:     count,
	})
	if err != nil {
		return nil, false, err
	}

	return texts, false, nil
}

func (s *CampaignService) selectAccounts(ctx context.Context, cmd CreateCampaignCommand) ([]domain.Account, error) {
	if len(cmd.Accounts) == 0 && cmd.RandomAccounts <= 0 {
		return nil, nil
	}

	all, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	if cmd.RandomAccounts > 0 {
		usable := make([]domain.Account, 0, len(all))
		for _, account := range all {
			if account.HasCredential() {
				usable = append(usable, account)
			}
		}
		if len(usable) == 0 {
			return nil, domain.ErrNoAccounts
		}
		return domain.PickRandomAccounts(usable, cmd.RandomAccounts, s.rng), nil
	}

	selected, err := accountsByID(all, cmd.Accounts)
	if err != nil {
		return nil, err
	}
	return domain.DedupeAccounts(selected), nil
}

func accountsByID(all []domain.Account, ids []domain.AccountID) ([]domain.Account, error) {
	byID := make(map[domain.AccountID]domain.Account, len(all))
	for _, account := range all {
		byID[account.ID] = account
	}

	selected := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		account, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		selected = append(selected, account)
	}

	return selected, nil
}

func (s *CampaignService) Get(ctx context.Context, id domain.CampaignID) (domain.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return campaign, nil
}

// List returns campaigns newest first.
func (s *CampaignService) List(ctx context.Context) ([]domain.Campaign, error) {
	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})

	return campaigns, nil
}

func (s *CampaignService) Delete(ctx context.Context, id domain.CampaignID) error {
	if err := s.campaigns.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

func (s *CampaignService) MarkCompleted(ctx context.Context, id domain.CampaignID) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}

	campaign.Status = domain.CampaignCompleted
	campaign.UpdatedAt = s.clock.Now()

	if err := s.campaigns.Save(ctx, campaign); err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	return nil
}

func (s *CampaignService) Schedule(ctx context.Context, id domain.CampaignID, at time.Time) (domain.Campaign, error) {
	now := s.clock.Now()
	if !at.After(now) {
		return domain.Campaign{}, domain.ErrScheduleInPast
	}

	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}

	campaign.Status = domain.CampaignScheduled
	campaign.ScheduledAt = at
	campaign.UpdatedAt = now

	if err := s.campaigns.Save(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("save campaign: %w", err)
	}
	return campaign, nil
}

// NextDue returns the earliest scheduled campaign whose time has come.
func (s *CampaignService) NextDue(ctx context.Context) (domain.Campaign, bool, error) {
	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return domain.Campaign{}, false, fmt.Errorf("list campaigns: %w", err)
	}

	now := s.clock.Now()
	var due []domain.Campaign
	for _, campaign := range campaigns {
		if campaign.IsDue(now) {
			due = append(due, campaign)
		}
	}
	if len(due) == 0 {
		return domain.Campaign{}, false, nil
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due[0], true, nil
}

// SelectedAccounts loads the accounts a campaign selected. Missing ids are
// ignored.
func (s *CampaignService) SelectedAccounts(ctx context.Context, campaign domain.Campaign) ([]domain.Account, error) {
	if len(campaign.Accounts) == 0 {
		return nil, nil
	}

	all, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	byID := make(map[domain.AccountID]domain.Account, len(all))
	for _, account := range all {
		byID[account.ID] = account
	}

	selected := make([]domain.Account, 0, len(campaign.Accounts))
	for _, id := range campaign.Accounts {
		if account, ok := byID[id]; ok {
			selected = append(selected, account)
		}
	}
	return selected, nil
}

// GenerateItems produces work items for a campaign that has none stored.
func (s *CampaignService) GenerateItems(ctx context.Context, campaign domain.Campaign, count int) ([]domain.WorkItem, error) {
	texts, _, err := s.contentFor(ctx, CreateCampaignCommand{
		PostContent: campaign.PostContent,
		Platform:    campaign.Platform,
		Sentiment:   campaign.Sentiment,
		Style:       campaign.Style,
		Count:       count,
	})
	if err != nil {
		return nil, err
	}

	items := domain.ItemsFromLines(texts, func() domain.WorkItemID {
		return domain.WorkItemID(uuid.NewString())
	})
	if len(items) == 0 {
		return nil, domain.ErrNoWorkItems
	}
	return items, nil
}

// RestoreSchedule puts a campaign back on the schedule it had before
// ClearSchedule, even when that time has already passed.
func (s *CampaignService) RestoreSchedule(ctx context.Context, id domain.CampaignID, at time.Time) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Status != domain.CampaignGenerated {
		return nil
	}

	campaign.Status = domain.CampaignScheduled
	campaign.ScheduledAt = at
	campaign.UpdatedAt = s.clock.Now()

	if err := s.campaigns.Save(ctx, campaign); err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	return nil
}

// ClearSchedule turns a scheduled campaign back into a runnable one so the
// scheduler starts it once.
func (s *CampaignService) ClearSchedule(ctx context.Context, id domain.CampaignID) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Status != domain.CampaignScheduled {
		return nil
	}

	campaign.Status = domain.CampaignGenerated
	campaign.UpdatedAt = s.clock.Now()

	if err := s.campaigns.Save(ctx, campaign); err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	return nil
}
