package errors

import "net/http"

// Service codes.
const (
	serviceCommon     = 0
	serviceClaim      = 20
	serviceThirdParty = 90
)

// Category codes. Each category maps to one HTTP status class.
const (
	categoryValidation = 1
	categoryNotFound   = 4
	categoryConflict   = 5
	categoryRateLimit  = 6
	categoryInternal   = 7
	categoryDatabase   = 8
	categoryNetwork    = 10
)

// Common errors.
var (
	// ErrInternal is the catch-all internal error.
	ErrInternal = &Errno{
		Code:    MakeCode(serviceCommon, categoryInternal, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Internal server error",
	}

	// ErrValidation indicates a missing or malformed request field.
	ErrValidation = &Errno{
		Code:    MakeCode(serviceCommon, categoryValidation, 1),
		HTTP:    http.StatusBadRequest,
		Message: "Invalid request parameter",
	}
)

// Claim pipeline errors.
var (
	// ErrClaimNotFound indicates the claim record does not exist.
	ErrClaimNotFound = &Errno{
		Code:    MakeCode(serviceClaim, categoryNotFound, 1),
		HTTP:    http.StatusNotFound,
		Message: "Claim not found",
	}

	// ErrClaimExists indicates a claim record was already created for the key.
	ErrClaimExists = &Errno{
		Code:    MakeCode(serviceClaim, categoryConflict, 1),
		HTTP:    http.StatusConflict,
		Message: "Claim already exists",
	}

	// ErrClaimFailed indicates the claim is in the terminal FAILED state.
	ErrClaimFailed = &Errno{
		Code:    MakeCode(serviceClaim, categoryConflict, 2),
		HTTP:    http.StatusConflict,
		Message: "Claim processing previously failed",
	}

	// ErrPersistence indicates a claim store read or write failure.
	// Safe to retry on re-invocation: stage writes are idempotent.
	ErrPersistence = &Errno{
		Code:    MakeCode(serviceClaim, categoryDatabase, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Claim store operation failed",
	}

	// ErrStageFailed indicates a pipeline stage returned a non-success result.
	ErrStageFailed = &Errno{
		Code:    MakeCode(serviceClaim, categoryInternal, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Pipeline stage failed",
	}

	// ErrPoolOverload indicates the ingest worker pool rejected the task.
	ErrPoolOverload = &Errno{
		Code:    MakeCode(serviceClaim, categoryRateLimit, 1),
		HTTP:    http.StatusServiceUnavailable,
		Message: "Ingest queue is full, retry later",
	}
)

// Third-party collaborator errors.
var (
	// ErrExternalService covers timeouts, non-success statuses and malformed
	// responses from extraction collaborators.
	ErrExternalService = &Errno{
		Code:    MakeCode(serviceThirdParty, categoryNetwork, 1),
		HTTP:    http.StatusBadGateway,
		Message: "External service call failed",
	}
)
