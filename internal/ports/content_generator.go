package ports

import (
	"context"

	"github.com/bnema/autoseed-cli/internal/domain"
)

type GenerateRequest struct {
	Topic     string
	Platform  domain.Platform
	Sentiment domain.Sentiment
	Style     domain.ContentStyle
	Count     int
}

// ContentGenerator turns a topic into ready-to-post texts. Failures caused by a
// rejected key wrap domain.ErrInvalidCredential.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]string, error)
}
