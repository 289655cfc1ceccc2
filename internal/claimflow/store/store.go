// Package store implements durable claim persistence on gorm. Each stage
// write is a guarded partial update: it only applies when the record is
// still in the stage's expected prior status, which makes re-invocation
// after a crash safe (at-most-once commit per stage).
package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/claimflow/internal/model"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the database connection settings.
type Config struct {
	Driver string
	DSN    string
}

// Factory creates the per-entity stores.
type Factory interface {
	Claims() ClaimStore
	AutoMigrate() error
	Close() error
}

// ClaimStore defines claim persistence. Apply* methods commit one stage's
// output; they succeed as a no-op when the stage output was already
// committed and never regress a record to an earlier status.
type ClaimStore interface {
	Create(ctx context.Context, claim *model.Claim) error
	Get(ctx context.Context, claimID string) (*model.Claim, error)
	ApplyTextExtraction(ctx context.Context, claimID, text string, pageCount int, kv map[string]string) error
	ApplyMedicalEntities(ctx context.Context, claimID string, entities *model.MedicalEntities, tier model.Tier) error
	ApplyRiskAnalysis(ctx context.Context, claimID string, analysis *model.RiskAnalysis) error
	MarkComplete(ctx context.Context, claimID string) error
	MarkFailed(ctx context.Context, claimID, reason string) error
}

// datastore implements Factory on a gorm connection.
type datastore struct {
	db *gorm.DB
}

// Open connects to the configured database and returns the factory.
func Open(cfg Config) (Factory, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Driver, err)
	}
	return &datastore{db: db}, nil
}

// New wraps an existing gorm connection. Used by tests.
func New(db *gorm.DB) Factory {
	return &datastore{db: db}
}

// Claims returns the claim store.
func (ds *datastore) Claims() ClaimStore {
	return newClaims(ds.db)
}

// AutoMigrate migrates the database schema.
func (ds *datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(&model.Claim{})
}

// Close closes the underlying connection.
func (ds *datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
