// Package bridge talks to the out-of-process automation agent.
//
// Every wire kind is a concrete Go type implementing Message. Requests and
// responses are correlated by kind only: at most one caller waits for a given
// kind at a time, and inbound messages nobody waits for are dropped.
package bridge

import "github.com/bnema/autoseed-cli/internal/domain"

type Kind string

const (
	KindPing           Kind = "ping"
	KindPong           Kind = "pong"
	KindSwitchAccount  Kind = "switch-account"
	KindCheckIdentity  Kind = "check-identity"
	KindIdentityReport Kind = "identity-report"
	KindExecute        Kind = "execute"
	KindActionComplete Kind = "action-complete"
	KindSyncAccounts   Kind = "sync-accounts"
	KindTestTarget     Kind = "test-target"
	KindTargetResult   Kind = "target-result"
	KindCheckAlive     Kind = "check-alive"
	KindAccountStatus  Kind = "account-status"
)

// Message is the closed set of bridge messages.
type Message interface {
	Kind() Kind
	isMessage()
}

type Ping struct {
	Version string `json:"version,omitempty"`
}

type Pong struct {
	Version string `json:"version,omitempty"`
}

// SwitchAccount asks the agent to open destination signed in with credential.
type SwitchAccount struct {
	Credential  string `json:"credential"`
	Destination string `json:"destination"`
}

type CheckIdentity struct{}

// IdentityReport carries the identity the agent is currently acting as. UID is
// empty when the agent could not read one.
type IdentityReport struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
}

type Execute struct {
	Action      domain.ActionKind `json:"action"`
	Text        string            `json:"text,omitempty"`
	Destination string            `json:"destination"`
	Metadata    ExecuteMetadata   `json:"metadata"`
}

type ExecuteMetadata struct {
	CampaignID    string           `json:"campaignId,omitempty"`
	AccountName   string           `json:"accountName,omitempty"`
	AccountAvatar string           `json:"accountAvatar,omitempty"`
	StatusPost    bool             `json:"statusPost,omitempty"`
	IdleSeconds   int              `json:"idleSeconds,omitempty"`
	Humanize      *HumanizeOptions `json:"humanize,omitempty"`
}

// HumanizeOptions mirrors domain.HumanizeConfig on the wire. The agent
// interprets them; this side only forwards.
type HumanizeOptions struct {
	Enabled      bool   `json:"enabled"`
	TypingSpeed  string `json:"typingSpeed,omitempty"`
	RandomScroll bool   `json:"randomScroll,omitempty"`
	ReadMore     bool   `json:"readMore,omitempty"`
	RandomDelay  bool   `json:"randomDelay,omitempty"`
	Typos        bool   `json:"typos,omitempty"`
	LikeCount    int    `json:"likeCount,omitempty"`
}

func HumanizeFrom(cfg domain.HumanizeConfig) *HumanizeOptions {
	if !cfg.Enabled {
		return nil
	}
	return &HumanizeOptions{
		Enabled:      true,
		TypingSpeed:  string(cfg.TypingSpeed),
		RandomScroll: cfg.RandomScroll,
		ReadMore:     cfg.ReadMore,
		RandomDelay:  cfg.RandomDelay,
		Typos:        cfg.Typos,
		LikeCount:    cfg.LikeCount,
	}
}

type ActionComplete struct{}

type SyncedAccount struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credential string `json:"credential"`
}

type SyncAccounts struct {
	Accounts []SyncedAccount `json:"accounts"`
}

type TestTarget struct {
	URL string `json:"url"`
}

type TargetResult struct {
	Found bool `json:"found"`
}

type CheckAlive struct {
	AccountID  string `json:"accountId"`
	Credential string `json:"credential"`
}

type AccountStatus struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

func (Ping) Kind() Kind           { return KindPing }
func (Pong) Kind() Kind           { return KindPong }
func (SwitchAccount) Kind() Kind  { return KindSwitchAccount }
func (CheckIdentity) Kind() Kind  { return KindCheckIdentity }
func (IdentityReport) Kind() Kind { return KindIdentityReport }
func (Execute) Kind() Kind        { return KindExecute }
func (ActionComplete) Kind() Kind { return KindActionComplete }
func (SyncAccounts) Kind() Kind   { return KindSyncAccounts }
func (TestTarget) Kind() Kind     { return KindTestTarget }
func (TargetResult) Kind() Kind   { return KindTargetResult }
func (CheckAlive) Kind() Kind     { return KindCheckAlive }
func (AccountStatus) Kind() Kind  { return KindAccountStatus }

func (Ping) isMessage()           {}
func (Pong) isMessage()           {}
func (SwitchAccount) isMessage()  {}
func (CheckIdentity) isMessage()  {}
func (IdentityReport) isMessage() {}
func (Execute) isMessage()        {}
func (ActionComplete) isMessage() {}
func (SyncAccounts) isMessage()   {}
func (TestTarget) isMessage()     {}
func (TargetResult) isMessage()   {}
func (CheckAlive) isMessage()     {}
func (AccountStatus) isMessage()  {}
