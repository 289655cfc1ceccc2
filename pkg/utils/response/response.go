// Package response provides the unified API response envelope.
// All HTTP endpoints return this format so that clients can rely on a
// stable code/message/data shape on success and error paths alike.
package response

import (
	"net/http"

	"github.com/kart-io/claimflow/pkg/utils/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success).
	Code int `json:"code"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Data contains the response payload (nil for errors).
	Data interface{} `json:"data,omitempty"`

	// Error carries the error message for failed requests. Kept as a
	// separate field so that `{"error": ...}` consumers keep working.
	Error string `json:"error,omitempty"`

	// RequestID is the unique request identifier for tracing.
	RequestID string `json:"request_id,omitempty"`

	httpCode int
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:     0,
		Message:  "success",
		Data:     data,
		httpCode: http.StatusOK,
	}
}

// Accepted creates a 202 response for asynchronous work.
func Accepted(data interface{}) *Response {
	return &Response{
		Code:     0,
		Message:  "accepted",
		Data:     data,
		httpCode: http.StatusAccepted,
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		Message:  e.Message,
		Error:    e.Message,
		httpCode: e.HTTPStatus(),
	}
}

// WithRequestID attaches the request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.httpCode != 0 {
		return r.httpCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}
