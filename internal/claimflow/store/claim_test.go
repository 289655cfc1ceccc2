package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/utils/errors"
)

func newTestFactory(t *testing.T) Factory {
	t.Helper()
	factory, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, factory.AutoMigrate())
	t.Cleanup(func() { _ = factory.Close() })
	return factory
}

func newTestClaim(id string) *model.Claim {
	return &model.Claim{
		ClaimID:      id,
		UserID:       "u1",
		Status:       model.StatusUploaded,
		Bucket:       "claims-bucket",
		ObjectKey:    "u1/123_claim.pdf",
		AnalysisTier: model.TierStandard,
	}
}

func TestCreateAndGet(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()

	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))

	claim, err := claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", claim.ClaimID)
	assert.Equal(t, model.StatusUploaded, claim.Status)
	assert.False(t, claim.ProcessingComplete)
}

func TestCreateDuplicate(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()

	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))
	err := claims.Create(ctx, newTestClaim("c1"))
	assert.ErrorIs(t, err, errors.ErrClaimExists)
}

func TestGetNotFound(t *testing.T) {
	claims := newTestFactory(t).Claims()
	_, err := claims.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrClaimNotFound)
}

func TestStagePipeline(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()
	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))

	kv := map[string]string{"patient_name": "Jane Roe"}
	require.NoError(t, claims.ApplyTextExtraction(ctx, "c1", "page text", 2, kv))

	claim, err := claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTextExtracted, claim.Status)
	assert.Equal(t, "page text", claim.ExtractedText)
	assert.Equal(t, 2, claim.PageCount)
	assert.Equal(t, kv, claim.KeyValuePairs.Data())

	entities := &model.MedicalEntities{
		DiagnosisCodes:   []string{"E11.9"},
		ExtractionMethod: "rule_based",
	}
	require.NoError(t, claims.ApplyMedicalEntities(ctx, "c1", entities, model.TierStandard))

	claim, err = claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusMedicalAnalysisComplete, claim.Status)
	require.NotNil(t, claim.MedicalEntities)
	assert.Equal(t, []string{"E11.9"}, claim.MedicalEntities.DiagnosisCodes)

	analysis := &model.RiskAnalysis{ClaimID: "c1", Score: 25, Level: model.RiskLevelMedium}
	require.NoError(t, claims.ApplyRiskAnalysis(ctx, "c1", analysis))

	claim, err = claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScoringComplete, claim.Status)
	assert.Equal(t, 25, claim.FinalScore)

	require.NoError(t, claims.MarkComplete(ctx, "c1"))
	claim, err = claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, claim.ProcessingComplete)
	require.NotNil(t, claim.CompletedAt)
}

func TestStageWriteIdempotent(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()
	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))

	require.NoError(t, claims.ApplyTextExtraction(ctx, "c1", "first", 1, nil))
	// Replayed stage write is a no-op, not an overwrite.
	require.NoError(t, claims.ApplyTextExtraction(ctx, "c1", "second", 9, nil))

	claim, err := claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "first", claim.ExtractedText)
	assert.Equal(t, 1, claim.PageCount)
}

func TestStageWriteOutOfOrder(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()
	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))

	// Scoring before medical extraction must be rejected.
	err := claims.ApplyRiskAnalysis(ctx, "c1", &model.RiskAnalysis{Score: 10})
	assert.ErrorIs(t, err, errors.ErrStageFailed)
}

func TestMarkCompleteRequiresScoring(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()
	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))

	err := claims.MarkComplete(ctx, "c1")
	assert.ErrorIs(t, err, errors.ErrStageFailed)
}

func TestMarkFailed(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()
	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))

	require.NoError(t, claims.MarkFailed(ctx, "c1", "pdf unreadable"))

	claim, err := claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, claim.Status)
	assert.Equal(t, "pdf unreadable", claim.FailureReason)
}

func TestMarkFailedNeverRegressesSuccess(t *testing.T) {
	claims := newTestFactory(t).Claims()
	ctx := context.Background()
	require.NoError(t, claims.Create(ctx, newTestClaim("c1")))
	require.NoError(t, claims.ApplyTextExtraction(ctx, "c1", "text", 1, nil))
	require.NoError(t, claims.ApplyMedicalEntities(ctx, "c1", &model.MedicalEntities{}, model.TierStandard))
	require.NoError(t, claims.ApplyRiskAnalysis(ctx, "c1", &model.RiskAnalysis{Score: 0}))

	require.NoError(t, claims.MarkFailed(ctx, "c1", "late failure"))

	claim, err := claims.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScoringComplete, claim.Status)
	assert.Empty(t, claim.FailureReason)
}
