package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/claimflow/internal/model"
)

type stubStrategy struct {
	name    string
	err     error
	delay   time.Duration
	calls   int
	entCopy model.MedicalEntities
}

func (s *stubStrategy) Extract(ctx context.Context, _ Input) (*model.MedicalEntities, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	ent := s.entCopy
	ent.ExtractionMethod = s.name
	return &ent, nil
}

func (s *stubStrategy) Name() string { return s.name }

func TestChainFirstSuccessWins(t *testing.T) {
	lm := &stubStrategy{name: "lm"}
	fb := &stubStrategy{name: "fallback"}
	c := NewChain(fb, WithLanguageModel(lm))

	entities, err := c.Extract(context.Background(), Input{ClaimID: "c1", Tier: model.TierStandard})
	require.NoError(t, err)
	assert.Equal(t, "lm", entities.ExtractionMethod)
	assert.Equal(t, 0, fb.calls)
}

func TestChainFallsBackOnError(t *testing.T) {
	lm := &stubStrategy{name: "lm", err: errors.New("quota exceeded")}
	fb := &stubStrategy{name: "fallback"}
	c := NewChain(fb, WithLanguageModel(lm))

	entities, err := c.Extract(context.Background(), Input{ClaimID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", entities.ExtractionMethod)
	assert.Equal(t, 1, lm.calls)
}

func TestChainDeepModelProTierOnly(t *testing.T) {
	deep := &stubStrategy{name: "deep"}
	fb := &stubStrategy{name: "fallback"}
	c := NewChain(fb, WithDeepModel(deep))

	entities, err := c.Extract(context.Background(), Input{Tier: model.TierStandard})
	require.NoError(t, err)
	assert.Equal(t, "fallback", entities.ExtractionMethod)
	assert.Equal(t, 0, deep.calls)

	entities, err = c.Extract(context.Background(), Input{Tier: model.TierPro})
	require.NoError(t, err)
	assert.Equal(t, "deep", entities.ExtractionMethod)
	assert.Equal(t, 1, deep.calls)
}

type probedStrategy struct {
	stubStrategy
	healthy bool
	probes  int
}

func (s *probedStrategy) Healthy(context.Context) bool {
	s.probes++
	return s.healthy
}

func TestChainSkipsUnhealthyDeepModel(t *testing.T) {
	deep := &probedStrategy{stubStrategy: stubStrategy{name: "deep"}, healthy: false}
	lm := &stubStrategy{name: "lm"}
	fb := &stubStrategy{name: "fallback"}
	c := NewChain(fb, WithDeepModel(deep), WithLanguageModel(lm))

	entities, err := c.Extract(context.Background(), Input{ClaimID: "c1", Tier: model.TierPro})
	require.NoError(t, err)
	assert.Equal(t, "lm", entities.ExtractionMethod)
	assert.Equal(t, 1, deep.probes)
	assert.Equal(t, 0, deep.calls)

	deep.healthy = true
	entities, err = c.Extract(context.Background(), Input{ClaimID: "c1", Tier: model.TierPro})
	require.NoError(t, err)
	assert.Equal(t, "deep", entities.ExtractionMethod)
	assert.Equal(t, 1, deep.calls)
}

func TestChainTimeoutFallsThrough(t *testing.T) {
	deep := &stubStrategy{name: "deep", delay: 200 * time.Millisecond}
	lm := &stubStrategy{name: "lm"}
	fb := &stubStrategy{name: "fallback"}
	c := NewChain(fb,
		WithDeepModel(deep),
		WithLanguageModel(lm),
		WithAttemptTimeout(20*time.Millisecond),
	)

	entities, err := c.Extract(context.Background(), Input{Tier: model.TierPro})
	require.NoError(t, err)
	assert.Equal(t, "lm", entities.ExtractionMethod)
}

func TestChainObserverSeesEveryAttempt(t *testing.T) {
	var seen []string
	lm := &stubStrategy{name: "lm", err: errors.New("boom")}
	fb := &stubStrategy{name: "fallback"}
	c := NewChain(fb,
		WithLanguageModel(lm),
		WithObserver(func(strategy string, _ time.Duration, _ error) {
			seen = append(seen, strategy)
		}),
	)

	_, err := c.Extract(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, []string{"lm", "fallback"}, seen)
}
