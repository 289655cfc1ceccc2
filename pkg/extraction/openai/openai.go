// Package openai implements the language-model extraction strategy on
// the OpenAI chat completion API. It is the middle tier of the fallback
// chain: cheaper than the GPU service, richer than pattern matching.
package openai

import (
	"context"
	"strings"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/extraction"
	"github.com/kart-io/claimflow/pkg/secrets"
	"github.com/kart-io/claimflow/pkg/utils/errors"
	"github.com/kart-io/claimflow/pkg/utils/json"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// maxPromptChars bounds how much claim text goes into the prompt.
const maxPromptChars = 4000

// Per-token prices in USD, used for the recorded cost estimate.
var (
	inputTokenPrice  = decimal.RequireFromString("0.00000015")
	outputTokenPrice = decimal.RequireFromString("0.0000006")
)

const systemPrompt = `You are a medical claims analyst. Extract structured medical entities from the claim document text. Respond with JSON only, no prose, matching exactly this schema:
{
  "patient": {"name": "", "id": "", "age": "", "gender": ""},
  "diagnosis_codes": [],
  "procedure_codes": [],
  "medications": [],
  "conditions": [],
  "provider": {"name": "", "npi": ""},
  "claim_amount": ""
}`

// completionClient is the subset of the OpenAI client the strategy uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Strategy extracts entities through a chat completion call. The client
// is rebuilt whenever the credential provider hands out a new key, so a
// rotated secret takes effect without a restart.
type Strategy struct {
	creds secrets.Provider
	model string

	mu        sync.Mutex
	activeKey string
	client    completionClient

	// newClient is swappable for tests.
	newClient func(apiKey string) completionClient
}

// New creates the language-model strategy.
func New(creds secrets.Provider, modelName string) *Strategy {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Strategy{
		creds: creds,
		model: modelName,
		newClient: func(apiKey string) completionClient {
			return goopenai.NewClient(apiKey)
		},
	}
}

// Name implements extraction.Strategy.
func (s *Strategy) Name() string {
	return s.model
}

func (s *Strategy) clientForKey(key string) completionClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.activeKey != key {
		s.client = s.newClient(key)
		s.activeKey = key
	}
	return s.client
}

// Extract prompts the model with the claim text and parses the JSON
// reply. A 401 from the API invalidates the cached credential so the
// next attempt fetches a fresh one.
func (s *Strategy) Extract(ctx context.Context, in extraction.Input) (*model.MedicalEntities, error) {
	key, err := s.creds.Get(ctx)
	if err != nil {
		return nil, errors.ErrExternalService.WithCause(err)
	}
	client := s.clientForKey(key)

	text := in.Text
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.1,
		MaxTokens:   500,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: "Claim document text:\n\n" + text},
		},
	})
	if err != nil {
		if apiErr, ok := err.(*goopenai.APIError); ok && apiErr.HTTPStatusCode == 401 {
			s.creds.Invalidate()
		}
		return nil, errors.ErrExternalService.WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.ErrExternalService.WithMessage("completion returned no choices")
	}

	entities, err := parseCompletion(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	entities.ExtractionMethod = s.model
	entities.Cost = &model.ExtractionCost{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		EstimatedUSD: estimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}
	return entities, nil
}

// parseCompletion decodes the model reply, tolerating markdown fences.
func parseCompletion(content string) (*model.MedicalEntities, error) {
	content = stripFences(content)
	var entities model.MedicalEntities
	if err := json.Unmarshal([]byte(content), &entities); err != nil {
		return nil, errors.ErrExternalService.WithMessagef("completion is not valid JSON: %v", err)
	}
	return &entities, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func estimateCost(inputTokens, outputTokens int) decimal.Decimal {
	in := decimal.NewFromInt(int64(inputTokens)).Mul(inputTokenPrice)
	out := decimal.NewFromInt(int64(outputTokens)).Mul(outputTokenPrice)
	return in.Add(out)
}
