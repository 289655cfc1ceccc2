// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/claimflow/pkg/middleware"
	"github.com/kart-io/claimflow/pkg/utils/errors"
	"github.com/kart-io/claimflow/pkg/utils/response"
)

// WriteResponse writes the response to the client. It handles both success
// and error cases, ensuring a consistent envelope and carrying the request
// ID through for tracing.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	requestID := middleware.GetRequestID(c.Request.Context())

	if err != nil {
		var resp *response.Response
		if errno, ok := err.(*errors.Errno); ok {
			resp = response.Err(errno)
		} else {
			resp = response.Err(errors.ErrInternal.WithMessage(err.Error()))
		}
		c.JSON(resp.HTTPStatus(), resp.WithRequestID(requestID))
		return
	}

	// data can be a prepared *response.Response (e.g. response.Accepted) or
	// raw payload data.
	if resp, ok := data.(*response.Response); ok {
		c.JSON(resp.HTTPStatus(), resp.WithRequestID(requestID))
		return
	}

	resp := response.Success(data)
	c.JSON(resp.HTTPStatus(), resp.WithRequestID(requestID))
}
