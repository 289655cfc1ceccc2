package claimflow

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/claimflow/internal/claimflow/store"
	logopts "github.com/kart-io/claimflow/pkg/options/logger"
)

// HTTPOptions contains the HTTP server configuration.
type HTTPOptions struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout  time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
}

// DBOptions selects and configures the claim store database.
type DBOptions struct {
	Driver string `json:"driver" mapstructure:"driver"`
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// RedisOptions configures the optional claim query cache.
type RedisOptions struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"-" mapstructure:"password"`
	Database int    `json:"database" mapstructure:"database"`
}

// S3Options configures the upload object store.
type S3Options struct {
	Bucket   string `json:"bucket" mapstructure:"bucket"`
	Region   string `json:"region" mapstructure:"region"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
}

// ExtractionOptions configures the medical extraction chain.
type ExtractionOptions struct {
	// DeepModelEndpoint enables the GPU-tier strategy when non-empty.
	DeepModelEndpoint string `json:"deepmodel-endpoint" mapstructure:"deepmodel-endpoint"`
	DeepModelAPIKey   string `json:"-" mapstructure:"deepmodel-api-key"`

	// OpenAIKeyEnv names the environment variable holding the language
	// model credential. The strategy is skipped when the variable is unset.
	OpenAIKeyEnv string `json:"openai-key-env" mapstructure:"openai-key-env"`
	OpenAIModel  string `json:"openai-model" mapstructure:"openai-model"`

	AttemptTimeout time.Duration `json:"attempt-timeout" mapstructure:"attempt-timeout"`
}

// PipelineOptions configures orchestration behavior.
type PipelineOptions struct {
	WorkerPoolSize  int           `json:"worker-pool-size" mapstructure:"worker-pool-size"`
	ConsistencyWait time.Duration `json:"consistency-wait" mapstructure:"consistency-wait"`
}

// Options aggregates all server configuration.
type Options struct {
	HTTP       *HTTPOptions       `json:"http" mapstructure:"http"`
	Log        *logopts.Options   `json:"log" mapstructure:"log"`
	DB         *DBOptions         `json:"db" mapstructure:"db"`
	Redis      *RedisOptions      `json:"redis" mapstructure:"redis"`
	S3         *S3Options         `json:"s3" mapstructure:"s3"`
	Extraction *ExtractionOptions `json:"extraction" mapstructure:"extraction"`
	Pipeline   *PipelineOptions   `json:"pipeline" mapstructure:"pipeline"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP: &HTTPOptions{
			Addr:         ":8320",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Log: logopts.NewOptions(),
		DB: &DBOptions{
			Driver: store.DriverSQLite,
			DSN:    "claimflow.db",
		},
		Redis: &RedisOptions{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
		},
		S3: &S3Options{
			Bucket: "claimflow-uploads",
			Region: "us-east-1",
		},
		Extraction: &ExtractionOptions{
			OpenAIKeyEnv:   "OPENAI_API_KEY",
			OpenAIModel:    "gpt-4o-mini",
			AttemptTimeout: 30 * time.Second,
		},
		Pipeline: &PipelineOptions{
			WorkerPoolSize:  32,
			ConsistencyWait: 2 * time.Second,
		},
	}
}

// AddFlags registers all option flags.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "HTTP server bind address and port")
	fs.DurationVar(&o.HTTP.ReadTimeout, "http.read-timeout", o.HTTP.ReadTimeout, "Timeout for reading the entire request")
	fs.DurationVar(&o.HTTP.WriteTimeout, "http.write-timeout", o.HTTP.WriteTimeout, "Timeout before timing out response writes")
	fs.DurationVar(&o.HTTP.IdleTimeout, "http.idle-timeout", o.HTTP.IdleTimeout, "Maximum time to wait for the next request")

	o.Log.AddFlags(fs)

	fs.StringVar(&o.DB.Driver, "db.driver", o.DB.Driver, "Claim store driver (sqlite|postgres)")
	fs.StringVar(&o.DB.DSN, "db.dsn", o.DB.DSN, "Claim store data source name")

	fs.BoolVar(&o.Redis.Enabled, "redis.enabled", o.Redis.Enabled, "Enable the redis claim query cache")
	fs.StringVar(&o.Redis.Addr, "redis.addr", o.Redis.Addr, "Redis address")
	fs.StringVar(&o.Redis.Password, "redis.password", o.Redis.Password, "Redis password")
	fs.IntVar(&o.Redis.Database, "redis.database", o.Redis.Database, "Redis database index")

	fs.StringVar(&o.S3.Bucket, "s3.bucket", o.S3.Bucket, "Upload bucket name")
	fs.StringVar(&o.S3.Region, "s3.region", o.S3.Region, "Upload bucket region")
	fs.StringVar(&o.S3.Endpoint, "s3.endpoint", o.S3.Endpoint, "Custom S3 endpoint (for MinIO and compatibles)")

	fs.StringVar(&o.Extraction.DeepModelEndpoint, "extraction.deepmodel-endpoint", o.Extraction.DeepModelEndpoint, "Deep-model inference service endpoint (empty disables)")
	fs.StringVar(&o.Extraction.DeepModelAPIKey, "extraction.deepmodel-api-key", o.Extraction.DeepModelAPIKey, "Deep-model inference service API key")
	fs.StringVar(&o.Extraction.OpenAIKeyEnv, "extraction.openai-key-env", o.Extraction.OpenAIKeyEnv, "Environment variable holding the OpenAI API key")
	fs.StringVar(&o.Extraction.OpenAIModel, "extraction.openai-model", o.Extraction.OpenAIModel, "OpenAI chat model for extraction")
	fs.DurationVar(&o.Extraction.AttemptTimeout, "extraction.attempt-timeout", o.Extraction.AttemptTimeout, "Upper bound per extraction attempt")

	fs.IntVar(&o.Pipeline.WorkerPoolSize, "pipeline.worker-pool-size", o.Pipeline.WorkerPoolSize, "Concurrent claim processing workers")
	fs.DurationVar(&o.Pipeline.ConsistencyWait, "pipeline.consistency-wait", o.Pipeline.ConsistencyWait, "Pause after the text stage before reading its output")
}

// Complete fills derived defaults.
func (o *Options) Complete() error {
	return o.Log.Complete()
}

// Validate checks the final option values.
func (o *Options) Validate() error {
	if o.HTTP.Addr == "" {
		return fmt.Errorf("http.addr cannot be empty")
	}
	if o.DB.Driver != store.DriverSQLite && o.DB.Driver != store.DriverPostgres {
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", o.DB.Driver)
	}
	if o.DB.DSN == "" {
		return fmt.Errorf("db.dsn cannot be empty")
	}
	if o.Pipeline.WorkerPoolSize <= 0 {
		return fmt.Errorf("pipeline.worker-pool-size must be positive")
	}
	if o.Extraction.AttemptTimeout <= 0 {
		return fmt.Errorf("extraction.attempt-timeout must be positive")
	}
	return o.Log.Validate()
}
