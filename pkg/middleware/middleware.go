// Package middleware provides common HTTP middleware for the claim API.
//
// This package includes:
//   - Recovery: panic recovery with JSON error response
//   - RequestID: adds a unique request ID to each request
//   - Logger: structured request logging
//   - CORS: cross-origin resource sharing support
package middleware
