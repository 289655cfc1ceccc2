// Package claimflow assembles and runs the claim processing service.
package claimflow

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/claimflow/internal/claimflow/biz"
	"github.com/kart-io/claimflow/internal/claimflow/handler"
	"github.com/kart-io/claimflow/internal/claimflow/metrics"
	"github.com/kart-io/claimflow/internal/claimflow/router"
	"github.com/kart-io/claimflow/internal/claimflow/store"
	"github.com/kart-io/claimflow/pkg/app"
	"github.com/kart-io/claimflow/pkg/extraction"
	"github.com/kart-io/claimflow/pkg/extraction/deepmodel"
	openaiext "github.com/kart-io/claimflow/pkg/extraction/openai"
	"github.com/kart-io/claimflow/pkg/extraction/pattern"
	"github.com/kart-io/claimflow/pkg/objstore"
	"github.com/kart-io/claimflow/pkg/risk"
	"github.com/kart-io/claimflow/pkg/secrets"
	"github.com/kart-io/claimflow/pkg/textract"
)

const (
	appName        = "claimflow"
	appDescription = `Claimflow Service

The insurance claim processing service.

This server provides:
  - Pre-signed document upload URLs
  - A staged claim pipeline: text extraction, medical-entity
    extraction with tier-based fallback, and rule-based risk scoring
  - Claim record queries`

	shutdownTimeout = 10 * time.Second
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Insurance claim processing service"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the service with the given options.
func Run(opts *Options) error {
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting claimflow service...")

	// Claim store.
	factory, err := store.Open(store.Config{Driver: opts.DB.Driver, DSN: opts.DB.DSN})
	if err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}
	defer factory.Close()

	if err := factory.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate claim store: %w", err)
	}
	logger.Info("Claim store ready")

	claims := factory.Claims()
	if opts.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.Redis.Addr,
			Password: opts.Redis.Password,
			DB:       opts.Redis.Database,
		})
		defer rdb.Close()
		claims = store.NewCachedStore(claims, rdb)
		logger.Infow("Claim query cache enabled", "addr", opts.Redis.Addr)
	}

	// Upload object store.
	objects, err := objstore.NewS3Store(context.Background(), objstore.S3Config{
		Bucket:   opts.S3.Bucket,
		Region:   opts.S3.Region,
		Endpoint: opts.S3.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	// Extraction chain: deep model for pro tier, language model when a
	// credential exists, pattern rules as the guaranteed fallback.
	chainOpts := []extraction.ChainOption{
		extraction.WithAttemptTimeout(opts.Extraction.AttemptTimeout),
		extraction.WithObserver(metrics.ObserveExtractionAttempt),
	}
	if deep := deepmodel.New(deepmodel.Config{
		Endpoint: opts.Extraction.DeepModelEndpoint,
		APIKey:   opts.Extraction.DeepModelAPIKey,
	}); deep != nil {
		chainOpts = append(chainOpts, extraction.WithDeepModel(deep))
		logger.Infow("Deep-model extraction enabled", "endpoint", opts.Extraction.DeepModelEndpoint)
	}
	if _, ok := os.LookupEnv(opts.Extraction.OpenAIKeyEnv); ok {
		creds := secrets.FromEnv(opts.Extraction.OpenAIKeyEnv)
		chainOpts = append(chainOpts,
			extraction.WithLanguageModel(openaiext.New(creds, opts.Extraction.OpenAIModel)))
		logger.Infow("Language-model extraction enabled", "model", opts.Extraction.OpenAIModel)
	}
	chain := extraction.NewChain(pattern.New(), chainOpts...)

	// Pipeline.
	stages := biz.NewStageExecutor(claims, objects, textract.NewPDFParser(), chain, risk.New())
	orch := biz.NewOrchestrator(claims, stages,
		biz.WithConsistencyWait(opts.Pipeline.ConsistencyWait))
	ingest, err := biz.NewIngestService(claims, objects, orch, opts.Pipeline.WorkerPoolSize)
	if err != nil {
		return err
	}
	defer ingest.Close()

	// HTTP server.
	claimHandler := handler.NewClaimHandler(claims, ingest)
	srv := &http.Server{
		Addr:         opts.HTTP.Addr,
		Handler:      router.New(claimHandler),
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", opts.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		logger.Infow("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
