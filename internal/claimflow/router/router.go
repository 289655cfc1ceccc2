// Package router wires the claim API routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/claimflow/internal/claimflow/handler"
	"github.com/kart-io/claimflow/pkg/middleware"
)

// New builds the gin engine with the full middleware stack and routes.
func New(claimHandler *handler.ClaimHandler) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	{
		v1.GET("/upload-url", claimHandler.UploadURL)
		v1.POST("/events/upload", claimHandler.UploadEvent)
		v1.POST("/process", claimHandler.Process)

		// Claim ids are object keys with slashes, hence the wildcard.
		v1.GET("/claims/*claim_id", claimHandler.Get)
	}

	return engine
}
