package openai

import (
	"context"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/claimflow/pkg/extraction"
	"github.com/kart-io/claimflow/pkg/secrets"
)

type fakeClient struct {
	resp goopenai.ChatCompletionResponse
	err  error
	last goopenai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	f.last = req
	return f.resp, f.err
}

func newTestStrategy(client completionClient) *Strategy {
	s := New(secrets.Static("sk-test"), "")
	s.newClient = func(string) completionClient { return client }
	return s
}

func TestExtractParsesFencedReply(t *testing.T) {
	fake := &fakeClient{
		resp: goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Content: "```json\n" + `{
					"patient": {"name": "Jane Roe", "id": "P-1001", "age": "42", "gender": "F"},
					"diagnosis_codes": ["E11.9"],
					"procedure_codes": ["99213"],
					"medications": ["Metformin"],
					"conditions": ["type 2 diabetes"],
					"provider": {"name": "Dr. Smith", "npi": "1234567890"},
					"claim_amount": "1250.00"
				}` + "\n```"},
			}},
			Usage: goopenai.Usage{PromptTokens: 1000, CompletionTokens: 200},
		},
	}

	s := newTestStrategy(fake)
	entities, err := s.Extract(context.Background(), extraction.Input{Text: "claim text"})
	require.NoError(t, err)

	assert.Equal(t, "Jane Roe", entities.Patient.Name)
	assert.Equal(t, []string{"E11.9"}, entities.DiagnosisCodes)
	assert.Equal(t, []string{"99213"}, entities.ProcedureCodes)
	assert.Equal(t, "1250.00", entities.ClaimAmount)
	assert.Equal(t, DefaultModel, entities.ExtractionMethod)

	require.NotNil(t, entities.Cost)
	assert.Equal(t, 1000, entities.Cost.InputTokens)
	assert.Equal(t, 200, entities.Cost.OutputTokens)
	assert.Equal(t, "0.00027", entities.Cost.EstimatedUSD.String())
}

func TestRequestParameters(t *testing.T) {
	fake := &fakeClient{
		resp: goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Content: "{}"},
			}},
		},
	}
	s := newTestStrategy(fake)
	_, err := s.Extract(context.Background(), extraction.Input{Text: "claim"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, fake.last.Model)
	assert.InDelta(t, 0.1, float64(fake.last.Temperature), 0.0001)
	assert.Equal(t, 500, fake.last.MaxTokens)
}

func TestExtractTruncatesPrompt(t *testing.T) {
	fake := &fakeClient{
		resp: goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Content: "{}"},
			}},
		},
	}
	s := newTestStrategy(fake)

	long := make([]byte, maxPromptChars*2)
	for i := range long {
		long[i] = 'x'
	}
	_, err := s.Extract(context.Background(), extraction.Input{Text: string(long)})
	require.NoError(t, err)

	user := fake.last.Messages[len(fake.last.Messages)-1].Content
	assert.LessOrEqual(t, len(user), maxPromptChars+len("Claim document text:\n\n"))
}

func TestExtractInvalidJSON(t *testing.T) {
	fake := &fakeClient{
		resp: goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Content: "I could not process this document."},
			}},
		},
	}
	s := newTestStrategy(fake)
	_, err := s.Extract(context.Background(), extraction.Input{Text: "claim"})
	require.Error(t, err)
}

type countingProvider struct {
	gets        int
	invalidates int
}

func (p *countingProvider) Get(context.Context) (string, error) {
	p.gets++
	return "sk-test", nil
}

func (p *countingProvider) Invalidate() { p.invalidates++ }

func TestUnauthorizedInvalidatesCredential(t *testing.T) {
	fake := &fakeClient{err: &goopenai.APIError{HTTPStatusCode: 401}}
	creds := &countingProvider{}
	s := New(creds, "")
	s.newClient = func(string) completionClient { return fake }

	_, err := s.Extract(context.Background(), extraction.Input{Text: "claim"})
	require.Error(t, err)
	assert.Equal(t, 1, creds.invalidates)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
