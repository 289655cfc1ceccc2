package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/claimflow/internal/claimflow/metrics"
	"github.com/kart-io/claimflow/internal/claimflow/store"
	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/objstore"
	"github.com/kart-io/claimflow/pkg/utils/errors"
)

// Upload URL lifetime and accepted document extensions.
const (
	PresignTTL = 5 * time.Minute

	// processTimeout bounds one background orchestration run.
	processTimeout = 5 * time.Minute
)

var allowedExtensions = map[string]bool{
	"pdf":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// PresignedUpload is the issued upload grant.
type PresignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
	ExpiresIn int    `json:"expiresIn"`
}

// IngestService issues upload URLs and turns storage upload events into
// claim records with a background orchestration run.
type IngestService struct {
	claims  store.ClaimStore
	objects objstore.ObjectStore
	orch    *Orchestrator
	pool    *ants.Pool

	now func() time.Time
}

// NewIngestService creates the ingest service backed by a non-blocking
// worker pool. Submissions beyond the pool capacity are rejected rather
// than queued, surfacing overload to the caller.
func NewIngestService(
	claims store.ClaimStore,
	objects objstore.ObjectStore,
	orch *Orchestrator,
	poolSize int,
) (*IngestService, error) {
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("biz: creating ingest pool: %w", err)
	}
	return &IngestService{
		claims:  claims,
		objects: objects,
		orch:    orch,
		pool:    pool,
		now:     time.Now,
	}, nil
}

// Close releases the worker pool.
func (s *IngestService) Close() {
	s.pool.Release()
}

// PresignUpload issues a short-lived write URL for the given filename,
// scoped to the extension allow-list. The object key embeds the user and
// an upload timestamp so keys never collide.
func (s *IngestService) PresignUpload(ctx context.Context, userID, filename string) (*PresignedUpload, error) {
	if filename == "" {
		return nil, errors.ErrValidation.WithMessage("Missing filename parameter")
	}
	if userID == "" {
		userID = "anonymous"
	}

	ext := strings.ToLower(extensionOf(filename))
	if !allowedExtensions[ext] {
		return nil, errors.ErrValidation.WithMessage(
			"Invalid file type. Allowed: pdf, jpg, jpeg, png")
	}

	contentType := "image/jpeg"
	if ext == "pdf" {
		contentType = "application/pdf"
	}

	key := fmt.Sprintf("%s/%s_%s", userID, s.now().Format("20060102_150405"), filename)
	url, err := s.objects.PresignPut(ctx, key, contentType, PresignTTL)
	if err != nil {
		return nil, errors.ErrExternalService.WithCause(err)
	}

	logger.Infow("issued upload url", "user_id", userID, "file_key", key)
	return &PresignedUpload{
		UploadURL: url,
		FileKey:   key,
		ExpiresIn: int(PresignTTL.Seconds()),
	}, nil
}

// HandleUploadEvent records the uploaded object as a new claim and
// schedules its orchestration on the worker pool. The claim id is the
// object key and the user id its leading path segment. Replayed events
// for an existing claim only reschedule processing; the record is never
// recreated.
func (s *IngestService) HandleUploadEvent(ctx context.Context, bucket, key string, tier model.Tier) (string, error) {
	if key == "" {
		return "", errors.ErrValidation.WithMessage("Missing object key")
	}
	if tier == "" {
		tier = model.TierStandard
	}
	if !tier.Valid() {
		return "", errors.ErrValidation.WithMessagef("Unknown analysis tier %q", tier)
	}

	size, err := s.objects.Head(ctx, key)
	if err != nil {
		return "", errors.ErrExternalService.WithCause(err)
	}

	claimID := key
	userID := "unknown"
	if i := strings.Index(key, "/"); i > 0 {
		userID = key[:i]
	}

	claim := &model.Claim{
		ClaimID:      claimID,
		UserID:       userID,
		Status:       model.StatusUploaded,
		Bucket:       bucket,
		ObjectKey:    key,
		FileSize:     size,
		AnalysisTier: tier,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		if !stderrors.Is(err, errors.ErrClaimExists) {
			return "", err
		}
		logger.Infow("claim already recorded, rescheduling", "claim_id", claimID)
	}

	if err := s.Schedule(claimID); err != nil {
		return "", err
	}
	return claimID, nil
}

// Schedule runs the orchestrator for the claim on the worker pool. The
// run gets its own bounded context; it must survive the triggering HTTP
// request.
func (s *IngestService) Schedule(claimID string) error {
	err := s.pool.Submit(func() {
		defer metrics.SetIngestQueueDepth(s.pool.Running())

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		if err := s.orch.Process(ctx, claimID); err != nil {
			logger.Errorw("claim processing failed",
				"claim_id", claimID, "error", err.Error())
		}
	})
	if err != nil {
		logger.Warnw("ingest pool rejected claim",
			"claim_id", claimID, "error", err.Error())
		return errors.ErrPoolOverload.WithCause(err)
	}
	metrics.SetIngestQueueDepth(s.pool.Running())
	return nil
}

func extensionOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return filename[i+1:]
}
