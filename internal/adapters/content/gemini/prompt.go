package gemini

import (
	"fmt"
	"strings"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

func styleInstruction(style domain.ContentStyle) string {
	switch style {
	case domain.StyleShort:
		return "Keep every text short and punchy, under 15 words: quick praise, price or shipping questions."
	case domain.StyleDetailed:
		return "Write long, detailed texts over 30 words that share a personal experience or concrete feedback."
	case domain.StyleQuestions:
		return "Ask questions that invite the author to reply: usage, price, warranty."
	case domain.StyleStatus:
		return "Write casual personal status updates for a profile wall. No sales tone; emoji are fine."
	default:
		return "Mix lengths: roughly 40% short, 40% medium and 20% long, as varied as real people."
	}
}

func systemInstruction(req ports.GenerateRequest) string {
	platform := req.Platform
	if platform == "" {
		platform = domain.PlatformFacebookPage
	}
	sentiment := req.Sentiment
	if sentiment == "" {
		sentiment = domain.SentimentPositive
	}

	var b strings.Builder
	b.WriteString("You write social media texts that read like genuine users, never like a bot.\n")
	fmt.Fprintf(&b, "Platform: %s.\n", platform)
	fmt.Fprintf(&b, "Tone: %s.\n", sentiment)
	fmt.Fprintf(&b, "Style: %s\n", styleInstruction(req.Style))
	return b.String()
}

func userPrompt(req ports.GenerateRequest) string {
	subject := fmt.Sprintf("Original post to reply to: %q.", req.Topic)
	if req.Style == domain.StyleStatus {
		subject = fmt.Sprintf("Status topic: %q. Write distinct captions about it.", req.Topic)
	}

	return fmt.Sprintf("Write %d distinct texts.\n%s\nReturn only the texts.", req.Count, subject)
}
