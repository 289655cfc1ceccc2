package extraction

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/claimflow/internal/model"
)

// DefaultAttemptTimeout bounds a single external extraction attempt. It must
// stay well below the orchestrator's per-claim deadline so the whole chain can
// complete within it.
const DefaultAttemptTimeout = 30 * time.Second

// Observer is notified after every strategy attempt. Used to wire metrics
// without coupling the chain to a metrics backend.
type Observer func(strategy string, duration time.Duration, err error)

// Chain runs strategies in tier-dependent fallback order until one succeeds.
// The terminal strategy must never fail, so the chain always produces a
// structurally valid result.
type Chain struct {
	deep           Strategy // optional, pro tier only
	languageModel  Strategy // optional
	fallback       Strategy // required, must not fail
	attemptTimeout time.Duration
	observer       Observer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithDeepModel sets the deep-model strategy attempted first for pro-tier
// claims.
func WithDeepModel(s Strategy) ChainOption {
	return func(c *Chain) { c.deep = s }
}

// WithLanguageModel sets the language-model strategy.
func WithLanguageModel(s Strategy) ChainOption {
	return func(c *Chain) { c.languageModel = s }
}

// WithAttemptTimeout bounds each external attempt.
func WithAttemptTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.attemptTimeout = d }
}

// WithObserver registers an attempt observer.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// NewChain builds a fallback chain terminated by the given guaranteed
// strategy (the pattern extractor in production).
func NewChain(fallback Strategy, opts ...ChainOption) *Chain {
	c := &Chain{
		fallback:       fallback,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// healthChecker is implemented by strategies with a liveness probe. A
// strategy reporting unhealthy is skipped for the invocation rather than
// charged a full attempt timeout.
type healthChecker interface {
	Healthy(ctx context.Context) bool
}

// order returns the strategies to attempt for the input's tier, terminal
// strategy last.
func (c *Chain) order(ctx context.Context, in Input) []Strategy {
	var out []Strategy
	if in.Tier == model.TierPro && c.deep != nil {
		if hc, ok := c.deep.(healthChecker); !ok || hc.Healthy(ctx) {
			out = append(out, c.deep)
		} else {
			logger.Warnw("skipping unhealthy extraction strategy",
				"claim_id", in.ClaimID,
				"strategy", c.deep.Name(),
			)
		}
	}
	if c.languageModel != nil {
		out = append(out, c.languageModel)
	}
	return append(out, c.fallback)
}

// Extract runs exactly one successful strategy per invocation. Failed or
// timed-out attempts are logged and fall through; they are not retried
// within the same invocation.
func (c *Chain) Extract(ctx context.Context, in Input) (*model.MedicalEntities, error) {
	strategies := c.order(ctx, in)

	var lastErr error
	for i, s := range strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		start := time.Now()
		entities, err := s.Extract(attemptCtx, in)
		cancel()

		if c.observer != nil {
			c.observer(s.Name(), time.Since(start), err)
		}

		if err == nil {
			if i > 0 {
				logger.Infow("extraction fell back",
					"claim_id", in.ClaimID,
					"strategy", s.Name(),
					"attempts", i+1,
				)
			}
			return entities, nil
		}

		lastErr = err
		logger.Warnw("extraction strategy failed",
			"claim_id", in.ClaimID,
			"strategy", s.Name(),
			"error", err.Error(),
		)
	}

	// The terminal strategy is contractually infallible; reaching this point
	// is a logic defect, not a runtime case.
	return nil, lastErr
}
