package toml

const currentCampaignsSchemaVersion = 1

type campaignsFileSchema struct {
	Version   int              `toml:"version"`
	Campaigns []campaignSchema `toml:"campaigns"`
}

func (s *campaignsFileSchema) schemaVersion() *int        { return &s.Version }
func (s *campaignsFileSchema) records() *[]campaignSchema { return &s.Campaigns }

type campaignSchema struct {
	ID          string           `toml:"id"`
	Title       string           `toml:"title"`
	TargetURL   string           `toml:"target_url"`
	PostContent string           `toml:"post_content,omitempty"`
	Platform    string           `toml:"platform,omitempty"`
	Sentiment   string           `toml:"sentiment,omitempty"`
	Style       string           `toml:"style,omitempty"`
	Status      string           `toml:"status"`
	Accounts    []string         `toml:"accounts"`
	CreatedAt   string           `toml:"created_at"`
	ScheduledAt string           `toml:"scheduled_at,omitempty"`
	UpdatedAt   string           `toml:"updated_at"`
	Toggles     togglesSchema    `toml:"toggles"`
	Items       []workItemSchema `toml:"items"`
}

// workItemSchema stores the assigned account by id only; the account record
// lives in accounts.toml.
type workItemSchema struct {
	ID        string `toml:"id"`
	Text      string `toml:"text"`
	AccountID string `toml:"account_id,omitempty"`
}

type togglesSchema struct {
	PostingEnabled         bool           `toml:"posting_enabled"`
	IdleInteractionEnabled bool           `toml:"idle_interaction_enabled"`
	IdleSeconds            int64          `toml:"idle_seconds"`
	DelaySeconds           int64          `toml:"delay_seconds"`
	Trust                  bool           `toml:"trust"`
	Humanize               humanizeSchema `toml:"humanize"`
}

type humanizeSchema struct {
	Enabled      bool   `toml:"enabled"`
	TypingSpeed  string `toml:"typing_speed,omitempty"`
	RandomScroll bool   `toml:"random_scroll"`
	ReadMore     bool   `toml:"read_more"`
	RandomDelay  bool   `toml:"random_delay"`
	Typos        bool   `toml:"typos"`
	LikeCount    int    `toml:"like_count"`
}
