package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/utils/errors"
)

type claims struct {
	db *gorm.DB
}

func newClaims(db *gorm.DB) *claims {
	return &claims{db}
}

// Create inserts the claim record. A duplicate claim_id maps to
// ErrClaimExists so the ingest path can tolerate replayed events.
func (c *claims) Create(ctx context.Context, claim *model.Claim) error {
	if err := c.db.WithContext(ctx).Create(claim).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrClaimExists
		}
		return errors.ErrPersistence.WithCause(err)
	}
	return nil
}

// Get retrieves a claim by id.
func (c *claims) Get(ctx context.Context, claimID string) (*model.Claim, error) {
	var claim model.Claim
	if err := c.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&claim).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrClaimNotFound
		}
		return nil, errors.ErrPersistence.WithCause(err)
	}
	return &claim, nil
}

// ApplyTextExtraction commits the text-extraction stage output. Guarded on
// the UPLOADED status so a crashed-and-retried stage cannot overwrite a
// later stage's view of the record.
func (c *claims) ApplyTextExtraction(ctx context.Context, claimID, text string, pageCount int, kv map[string]string) error {
	return c.guardedUpdate(ctx, claimID, model.StatusUploaded, model.StatusTextExtracted, map[string]interface{}{
		"extracted_text":  text,
		"page_count":      pageCount,
		"key_value_pairs": datatypes.NewJSONType(kv),
		"status":          model.StatusTextExtracted,
		"updated_at":      time.Now().UTC(),
	})
}

// ApplyMedicalEntities commits the medical-extraction stage output.
func (c *claims) ApplyMedicalEntities(ctx context.Context, claimID string, entities *model.MedicalEntities, tier model.Tier) error {
	return c.guardedUpdate(ctx, claimID, model.StatusTextExtracted, model.StatusMedicalAnalysisComplete, map[string]interface{}{
		"medical_entities": entities,
		"analysis_tier":    tier,
		"status":           model.StatusMedicalAnalysisComplete,
		"updated_at":       time.Now().UTC(),
	})
}

// ApplyRiskAnalysis commits the scoring stage output.
func (c *claims) ApplyRiskAnalysis(ctx context.Context, claimID string, analysis *model.RiskAnalysis) error {
	return c.guardedUpdate(ctx, claimID, model.StatusMedicalAnalysisComplete, model.StatusScoringComplete, map[string]interface{}{
		"risk_analysis": analysis,
		"final_score":   analysis.Score,
		"status":        model.StatusScoringComplete,
		"updated_at":    time.Now().UTC(),
	})
}

// MarkComplete flags the claim as fully processed. Only legal once the
// terminal scoring stage has committed.
func (c *claims) MarkComplete(ctx context.Context, claimID string) error {
	now := time.Now().UTC()
	res := c.db.WithContext(ctx).Model(&model.Claim{}).
		Where("claim_id = ? AND status = ? AND processing_complete = ?", claimID, model.StatusScoringComplete, false).
		Updates(map[string]interface{}{
			"processing_complete": true,
			"completed_at":        now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return errors.ErrPersistence.WithCause(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	claim, err := c.Get(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.ProcessingComplete {
		return nil
	}
	return errors.ErrStageFailed.WithMessagef(
		"cannot complete claim %s in status %s", claimID, claim.Status)
}

// MarkFailed moves the claim to the absorbing FAILED state. A claim whose
// scoring already committed is never regressed.
func (c *claims) MarkFailed(ctx context.Context, claimID, reason string) error {
	res := c.db.WithContext(ctx).Model(&model.Claim{}).
		Where("claim_id = ? AND status NOT IN ? AND processing_complete = ?",
			claimID, []model.Status{model.StatusScoringComplete, model.StatusFailed}, false).
		Updates(map[string]interface{}{
			"status":         model.StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return errors.ErrPersistence.WithCause(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Either absent, already failed, or already succeeded. Absent is the
	// only error case.
	_, err := c.Get(ctx, claimID)
	return err
}

// guardedUpdate applies a partial update only when the record still holds
// the stage's expected prior status. A zero-row update against a record
// already at or past the target status is an idempotent no-op.
func (c *claims) guardedUpdate(ctx context.Context, claimID string, prior, target model.Status, fields map[string]interface{}) error {
	res := c.db.WithContext(ctx).Model(&model.Claim{}).
		Where("claim_id = ? AND status = ?", claimID, prior).
		Updates(fields)
	if res.Error != nil {
		return errors.ErrPersistence.WithCause(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	claim, err := c.Get(ctx, claimID)
	if err != nil {
		return err
	}
	if statusRank(claim.Status) >= statusRank(target) {
		return nil
	}
	return errors.ErrStageFailed.WithMessagef(
		"claim %s in status %s, stage requires %s", claimID, claim.Status, prior)
}

// statusRank orders the forward pipeline states. FAILED outranks all so an
// absorbed claim silently rejects further stage writes as "already past".
func statusRank(s model.Status) int {
	switch s {
	case model.StatusUploaded:
		return 0
	case model.StatusTextExtracted:
		return 1
	case model.StatusMedicalAnalysisComplete:
		return 2
	case model.StatusScoringComplete:
		return 3
	case model.StatusFailed:
		return 4
	default:
		return -1
	}
}
