package toml

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

const (
	campaignsPathKey    = "campaigns.path"
	campaignsConfigFile = "campaigns.toml"
)

type CampaignRepository struct {
	doc *document[campaignsFileSchema, campaignSchema, *campaignsFileSchema]
}

var _ ports.CampaignRepository = (*CampaignRepository)(nil)

func NewCampaignRepository(cfg *viper.Viper) (*CampaignRepository, error) {
	path, err := resolvePath(cfg, campaignsPathKey, campaignsConfigFile)
	if err != nil {
		return nil, err
	}

	doc := openDocument[campaignsFileSchema, campaignSchema, *campaignsFileSchema](
		path, "campaigns", currentCampaignsSchemaVersion,
		func(entry campaignSchema) string { return entry.ID },
	)
	return &CampaignRepository{doc: doc}, nil
}

func (r *CampaignRepository) Save(ctx context.Context, campaign domain.Campaign) error {
	return r.doc.upsert(ctx, toCampaignSchema(campaign))
}

func (r *CampaignRepository) GetByID(ctx context.Context, id domain.CampaignID) (domain.Campaign, error) {
	entry, ok, err := r.doc.find(ctx, string(id))
	if err != nil {
		return domain.Campaign{}, err
	}
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return fromCampaignSchema(entry), nil
}

func (r *CampaignRepository) List(ctx context.Context) ([]domain.Campaign, error) {
	entries, err := r.doc.all(ctx)
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(entries))
	for _, entry := range entries {
		campaigns = append(campaigns, fromCampaignSchema(entry))
	}
	return campaigns, nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id domain.CampaignID) error {
	return r.doc.remove(ctx, string(id), domain.ErrCampaignNotFound)
}

func toCampaignSchema(campaign domain.Campaign) campaignSchema {
	accounts := make([]string, 0, len(campaign.Accounts))
	for _, id := range campaign.Accounts {
		accounts = append(accounts, string(id))
	}

	items := make([]workItemSchema, 0, len(campaign.Items))
	for _, item := range campaign.Items {
		entry := workItemSchema{ID: string(item.ID), Text: item.Text}
		if item.Account != nil {
			entry.AccountID = string(item.Account.ID)
		}
		items = append(items, entry)
	}

	toggles := campaign.Toggles
	return campaignSchema{
		ID:          string(campaign.ID),
		Title:       campaign.Title,
		TargetURL:   campaign.TargetURL,
		PostContent: campaign.PostContent,
		Platform:    string(campaign.Platform),
		Sentiment:   string(campaign.Sentiment),
		Style:       string(campaign.Style),
		Status:      string(campaign.Status),
		Accounts:    accounts,
		CreatedAt:   formatTime(campaign.CreatedAt),
		ScheduledAt: formatTime(campaign.ScheduledAt),
		UpdatedAt:   formatTime(campaign.UpdatedAt),
		Toggles: togglesSchema{
			PostingEnabled:         toggles.PostingEnabled,
			IdleInteractionEnabled: toggles.IdleInteractionEnabled,
			IdleSeconds:            int64(toggles.IdleDuration / time.Second),
			DelaySeconds:           int64(toggles.InterItemDelay / time.Second),
			Trust:                  toggles.Trust,
			Humanize: humanizeSchema{
				Enabled:      toggles.Humanize.Enabled,
				TypingSpeed:  string(toggles.Humanize.TypingSpeed),
				RandomScroll: toggles.Humanize.RandomScroll,
				ReadMore:     toggles.Humanize.ReadMore,
				RandomDelay:  toggles.Humanize.RandomDelay,
				Typos:        toggles.Humanize.Typos,
				LikeCount:    toggles.Humanize.LikeCount,
			},
		},
		Items: items,
	}
}

func fromCampaignSchema(entry campaignSchema) domain.Campaign {
	accounts := make([]domain.AccountID, 0, len(entry.Accounts))
	for _, id := range entry.Accounts {
		accounts = append(accounts, domain.AccountID(id))
	}

	items := make([]domain.WorkItem, 0, len(entry.Items))
	for _, item := range entry.Items {
		workItem := domain.WorkItem{ID: domain.WorkItemID(item.ID), Text: item.Text}
		if item.AccountID != "" {
			workItem.Account = &domain.Account{ID: domain.AccountID(item.AccountID)}
		}
		items = append(items, workItem)
	}

	toggles := entry.Toggles
	return domain.Campaign{
		ID:          domain.CampaignID(entry.ID),
		Title:       entry.Title,
		TargetURL:   entry.TargetURL,
		PostContent: entry.PostContent,
		Platform:    domain.Platform(entry.Platform),
		Sentiment:   domain.Sentiment(entry.Sentiment),
		Style:       domain.ContentStyle(entry.Style),
		Status:      domain.CampaignStatus(entry.Status),
		Items:       items,
		Accounts:    accounts,
		CreatedAt:   parseTime(entry.CreatedAt),
		ScheduledAt: parseTime(entry.ScheduledAt),
		UpdatedAt:   parseTime(entry.UpdatedAt),
		Toggles: domain.WorkflowToggles{
			PostingEnabled:         toggles.PostingEnabled,
			IdleInteractionEnabled: toggles.IdleInteractionEnabled,
			IdleDuration:           time.Duration(toggles.IdleSeconds) * time.Second,
			InterItemDelay:         time.Duration(toggles.DelaySeconds) * time.Second,
			Trust:                  toggles.Trust,
			Humanize: domain.HumanizeConfig{
				Enabled:      toggles.Humanize.Enabled,
				TypingSpeed:  domain.TypingSpeed(toggles.Humanize.TypingSpeed),
				RandomScroll: toggles.Humanize.RandomScroll,
				ReadMore:     toggles.Humanize.ReadMore,
				RandomDelay:  toggles.Humanize.RandomDelay,
				Typos:        toggles.Humanize.Typos,
				LikeCount:    toggles.Humanize.LikeCount,
			},
		},
	}
}
