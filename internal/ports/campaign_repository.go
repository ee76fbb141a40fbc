package ports

import (
	"context"

	"github.com/bnema/autoseed-cli/internal/domain"
)

type CampaignRepository interface {
	GetByID(ctx context.Context, id domain.CampaignID) (domain.Campaign, error)
	List(ctx context.Context) ([]domain.Campaign, error)
	Save(ctx context.Context, campaign domain.Campaign) error
	Delete(ctx context.Context, id domain.CampaignID) error
}
