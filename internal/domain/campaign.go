package domain

import (
	"fmt"
	"strings"
	"time"
)

type CampaignID string
type WorkItemID string

type Platform string
type Sentiment string
type ContentStyle string
type CampaignStatus string
type ActionKind string

const (
	PlatformFacebookPage    Platform = "facebook_page"
	PlatformFacebookGroup   Platform = "facebook_group"
	PlatformFacebookProfile Platform = "facebook_profile"
	PlatformTikTok          Platform = "tiktok"
	PlatformInstagram       Platform = "instagram"

	SentimentPositive      Sentiment = "positive"
	SentimentNeutral       Sentiment = "neutral"
	SentimentControversial Sentiment = "controversial"
	SentimentFunny         Sentiment = "funny"
	SentimentSales         Sentiment = "sales"
	SentimentDailyLife     Sentiment = "daily_life"

	StyleMixed     ContentStyle = "mixed"
	StyleShort     ContentStyle = "short"
	StyleDetailed  ContentStyle = "detailed"
	StyleQuestions ContentStyle = "questions"
	StyleStatus    ContentStyle = "status"

	CampaignDraft     CampaignStatus = "draft"
	CampaignGenerated CampaignStatus = "generated"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignCompleted CampaignStatus = "completed"

	ActionComment  ActionKind = "comment"
	ActionStatus   ActionKind = "status"
	ActionIdleWalk ActionKind = "idle-walk"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformFacebookPage, PlatformFacebookGroup, PlatformFacebookProfile, PlatformTikTok, PlatformInstagram:
		return true
	default:
		return false
	}
}

// WorkItem is one content delivery task. Account is set once by the distributor.
type WorkItem struct {
	ID      WorkItemID
	Text    string
	Account *Account
}

type Campaign struct {
	ID          CampaignID
	Title       string
	TargetURL   string
	PostContent string
	Platform    Platform
	Sentiment   Sentiment
	Style       ContentStyle
	Status      CampaignStatus
	Items       []WorkItem
	Accounts    []AccountID
	Toggles     WorkflowToggles
	CreatedAt   time.Time
	ScheduledAt time.Time
	UpdatedAt   time.Time
}

func (c Campaign) Validate() error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(c.TargetURL) == "" {
		return fmt.Errorf("target url is required")
	}
	if c.Platform != "" && !c.Platform.Valid() {
		return fmt.Errorf("unsupported platform %q", c.Platform)
	}
	if c.Status == CampaignScheduled && c.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled campaign needs a scheduled time")
	}
	if err := c.Toggles.Validate(); err != nil {
		return err
	}

	return nil
}

// TrustMode reports whether items are posted as profile statuses instead of comments.
func (c Campaign) TrustMode() bool {
	return c.Toggles.Trust || c.Platform == PlatformFacebookProfile
}

func (c Campaign) ActionKind() ActionKind {
	if c.TrustMode() {
		return ActionStatus
	}
	return ActionComment
}

// IsDue reports whether a scheduled campaign should start at now.
func (c Campaign) IsDue(now time.Time) bool {
	if c.Status != CampaignScheduled || c.ScheduledAt.IsZero() {
		return false
	}
	return !c.ScheduledAt.After(now)
}

func (c *Campaign) NormalizeSelection() {
	if c == nil {
		return
	}

	selected := make([]AccountID, 0, len(c.Accounts))
	seen := make(map[AccountID]struct{}, len(c.Accounts))
	for _, id := range c.Accounts {
		trimmed := AccountID(strings.TrimSpace(string(id)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		selected = append(selected, trimmed)
	}

	c.Accounts = selected
}

// ItemsFromLines builds one work item per non-empty line.
func ItemsFromLines(lines []string, newID func() WorkItemID) []WorkItem {
	items := make([]WorkItem, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		items = append(items, WorkItem{ID: newID(), Text: text})
	}
	return items
}

// CampaignTitle derives a short title from the campaign source text.
func CampaignTitle(prefix, source string) string {
	source = strings.TrimSpace(source)
	if i := strings.IndexByte(source, '\n'); i >= 0 {
		source = source[:i]
	}
	runes := []rune(source)
	if len(runes) > 30 {
		return prefix + string(runes[:30]) + "..."
	}
	return prefix + source
}
