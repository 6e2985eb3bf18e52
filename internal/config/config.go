// Package config loads the client configuration from TOLCLIENT_* environment variables.
package config

import (
	"time"

	"github.com/gabapcia/tolclient/internal/pkg/validator"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended, with an underscore, to every variable name.
const Prefix = "TOLCLIENT"

// Config is the full client configuration. Sections are embedded so their variables share
// the top-level prefix.
type Config struct {
	Node
	Poll
	Receipt
	Replay
	Sender
	Log
	Telemetry
	Redis
}

// Node selects and tunes the JSON-RPC transport.
type Node struct {
	URL          string        `envconfig:"NODE_URL" required:"true" validate:"required,url"`
	WSURL        string        `envconfig:"NODE_WS_URL" validate:"omitempty,url"`
	Capabilities []string      `envconfig:"NODE_CAPABILITIES"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"5s" validate:"gt=0"`
	HTTPRetryMax int           `envconfig:"HTTP_RETRY_MAX" default:"2" validate:"gte=0"`
}

// Poll tunes filter polling. MaxBlocks caps how many blocks one poll of a positional
// block filter reads.
type Poll struct {
	Interval  time.Duration `envconfig:"POLL_INTERVAL" default:"15s" validate:"gt=0"`
	MaxBlocks uint64        `envconfig:"POLL_MAX_BLOCKS" default:"64" validate:"gte=1"`
}

// Receipt tunes receipt polling.
type Receipt struct {
	Attempts uint          `envconfig:"RECEIPT_ATTEMPTS" default:"40" validate:"gte=1"`
	Delay    time.Duration `envconfig:"RECEIPT_DELAY" default:"15s" validate:"gte=0"`
}

// Replay tunes historical replays. Every block lookup gets RetryAttempts tries.
type Replay struct {
	Workers       int           `envconfig:"REPLAY_WORKERS" default:"4" validate:"gte=1"`
	RetryAttempts uint          `envconfig:"REPLAY_RETRY_ATTEMPTS" default:"3" validate:"gte=1"`
	RetryDelay    time.Duration `envconfig:"REPLAY_RETRY_DELAY" default:"1s" validate:"gte=0"`
}

// Sender identifies who submitted transactions come from and how they are signed. A private
// key selects local signing; otherwise the node signs with the password.
type Sender struct {
	Address    string `envconfig:"SENDER_ADDRESS" validate:"omitempty,tol_address"`
	PrivateKey string `envconfig:"PRIVATE_KEY"`
	Password   string `envconfig:"SENDER_PASSWORD"`
}

// SignsLocally reports whether transactions are signed with a local key.
func (s Sender) SignsLocally() bool {
	return s.PrivateKey != ""
}

// Log configures the global logger.
type Log struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Enabled     bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"tolclient" validate:"required"`
}

// Redis configures checkpoint storage. An empty Addr disables it.
type Redis struct {
	Addr     string `envconfig:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	Username string `envconfig:"REDIS_USERNAME"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
}

// Enabled reports whether checkpoints are stored in Redis.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// Load reads and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, err
	}

	if err := validator.Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
