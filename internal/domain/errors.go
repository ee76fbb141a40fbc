package domain

import "errors"

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrNoAccounts       = errors.New("no accounts selected")
	ErrNoWorkItems      = errors.New("campaign has no work items")
	ErrMissingAccountID = errors.New("account id is required")
	ErrScheduleInPast   = errors.New("scheduled time must be in the future")

	// ErrInvalidCredential marks content generation failures caused by a rejected API key.
	ErrInvalidCredential = errors.New("invalid content generation credential")
	ErrGenerationFailed  = errors.New("content generation failed")
)
