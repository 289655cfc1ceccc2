// Package handler implements the HTTP handlers of the claim API.
package handler

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/claimflow/internal/claimflow/biz"
	"github.com/kart-io/claimflow/internal/claimflow/store"
	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/internal/pkg/httputils"
	"github.com/kart-io/claimflow/pkg/utils/errors"
	"github.com/kart-io/claimflow/pkg/utils/response"
)

// ClaimHandler serves claim queries and processing triggers.
type ClaimHandler struct {
	claims store.ClaimStore
	ingest *biz.IngestService
}

// NewClaimHandler creates a new ClaimHandler.
func NewClaimHandler(claims store.ClaimStore, ingest *biz.IngestService) *ClaimHandler {
	return &ClaimHandler{claims: claims, ingest: ingest}
}

// Get returns the full claim record. Claim ids are object keys and may
// contain slashes, so the route binds a wildcard parameter.
func (h *ClaimHandler) Get(c *gin.Context) {
	claimID := claimIDParam(c)
	if claimID == "" {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("Missing claim_id"), nil)
		return
	}

	claim, err := h.claims.Get(c.Request.Context(), claimID)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, claim)
}

// UploadURLRequest is the query for issuing an upload URL.
type UploadURLRequest struct {
	Filename string `form:"filename"`
}

// UploadURL issues a short-lived pre-signed upload URL.
func (h *ClaimHandler) UploadURL(c *gin.Context) {
	var req UploadURLRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage(err.Error()), nil)
		return
	}

	userID := c.GetHeader("X-User-ID")
	grant, err := h.ingest.PresignUpload(c.Request.Context(), userID, req.Filename)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, grant)
}

// UploadEventRequest is a storage upload notification.
type UploadEventRequest struct {
	Bucket       string `json:"bucket"`
	Key          string `json:"key" binding:"required"`
	AnalysisTier string `json:"analysis_tier"`
}

// UploadEvent records an uploaded document and schedules its processing.
func (h *ClaimHandler) UploadEvent(c *gin.Context) {
	var req UploadEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage(err.Error()), nil)
		return
	}

	claimID, err := h.ingest.HandleUploadEvent(c.Request.Context(),
		req.Bucket, req.Key, tierOf(req.AnalysisTier))
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, response.Accepted(gin.H{
		"message":  "Claim processing initiated",
		"claim_id": claimID,
	}))
}

// ProcessRequest triggers orchestration for an existing claim.
type ProcessRequest struct {
	ClaimID string `json:"claim_id" binding:"required"`
}

// Process re-invokes the pipeline for a claim. Safe to call repeatedly;
// completed claims are a no-op.
func (h *ClaimHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("Missing claim_id"), nil)
		return
	}

	// The claim must exist before scheduling, so callers get a 404 rather
	// than a silently failing background run.
	if _, err := h.claims.Get(c.Request.Context(), req.ClaimID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	if err := h.ingest.Schedule(req.ClaimID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	httputils.WriteResponse(c, nil, response.Accepted(gin.H{
		"claim_id": req.ClaimID,
	}))
}

func claimIDParam(c *gin.Context) string {
	claimID := strings.TrimPrefix(c.Param("claim_id"), "/")
	if unescaped, err := url.PathUnescape(claimID); err == nil {
		claimID = unescaped
	}
	return claimID
}

func tierOf(s string) model.Tier {
	return model.Tier(strings.ToLower(strings.TrimSpace(s)))
}
