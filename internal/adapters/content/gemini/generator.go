// Package gemini generates seeding texts with the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/ports"
)

const DefaultModel = "gemini-2.5-flash"

var invalidKeyMarkers = []string{"API key not valid", "API_KEY_INVALID"}

// modelClient is the slice of *genai.Models the generator needs.
type modelClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Generator struct {
	models modelClient
	model  string
	logger *zap.Logger
}

var _ ports.ContentGenerator = (*Generator)(nil)

// NewGenerator builds a Gemini client for apiKey. A blank key is reported as
// an invalid credential.
func NewGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", domain.ErrInvalidCredential)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model, logger), nil
}

func newGenerator(models modelClient, model string, logger *zap.Logger) *Generator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{models: models, model: model, logger: logger.Named("gemini")}
}

func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) ([]string, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is empty", domain.ErrGenerationFailed)
	}
	if req.Count <= 0 {
		req.Count = 5
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction(req), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	}

	g.logger.Debug("generating content",
		zap.String("model", g.model),
		zap.Int("count", req.Count),
		zap.String("style", string(req.Style)),
	)

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(userPrompt(req)), config)
	if err != nil {
		return nil, classify(err)
	}

	texts, err := parseTexts(resp.Text())
	if err != nil {
		return nil, err
	}
	if len(texts) > req.Count {
		texts = texts[:req.Count]
	}
	return texts, nil
}

type generatedText struct {
	Text string `json:"text"`
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": {Type: genai.TypeString, Description: "One ready-to-post text"},
			},
			Required: []string{"text"},
		},
	}
}

func parseTexts(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrGenerationFailed)
	}

	var entries []generatedText
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrGenerationFailed, err)
	}

	texts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if text := strings.TrimSpace(entry.Text); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: response had no texts", domain.ErrGenerationFailed)
	}
	return texts, nil
}

// classify maps a provider error onto the domain sentinels.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	for _, marker := range invalidKeyMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
}
