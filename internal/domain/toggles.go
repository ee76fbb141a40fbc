package domain

import (
	"fmt"
	"time"
)

type TypingSpeed string

const (
	TypingSlow   TypingSpeed = "slow"
	TypingNormal TypingSpeed = "normal"
	TypingFast   TypingSpeed = "fast"
)

// HumanizeConfig is forwarded to the agent untouched.
type HumanizeConfig struct {
	Enabled      bool
	TypingSpeed  TypingSpeed
	RandomScroll bool
	ReadMore     bool
	RandomDelay  bool
	Typos        bool
	LikeCount    int
}

type WorkflowToggles struct {
	PostingEnabled         bool
	IdleInteractionEnabled bool
	IdleDuration           time.Duration
	InterItemDelay         time.Duration
	// Trust posts items as profile statuses.
	Trust    bool
	Humanize HumanizeConfig
}

func DefaultToggles() WorkflowToggles {
	return WorkflowToggles{
		PostingEnabled: true,
		InterItemDelay: 3 * time.Second,
		Humanize: HumanizeConfig{
			TypingSpeed: TypingNormal,
		},
	}
}

func (t WorkflowToggles) Validate() error {
	if t.IdleDuration < 0 {
		return fmt.Errorf("idle duration must not be negative")
	}
	if t.InterItemDelay < 0 {
		return fmt.Errorf("inter-item delay must not be negative")
	}
	if t.IdleInteractionEnabled && t.IdleDuration == 0 {
		return fmt.Errorf("idle interaction needs a duration")
	}
	if t.Humanize.LikeCount < 0 {
		return fmt.Errorf("like count must not be negative")
	}
	switch t.Humanize.TypingSpeed {
	case "", TypingSlow, TypingNormal, TypingFast:
	default:
		return fmt.Errorf("unsupported typing speed %q", t.Humanize.TypingSpeed)
	}

	return nil
}
