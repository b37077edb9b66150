package domain

import (
	"os"
	"strconv"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// RulesPath points at an optional YAML rule-set file. Empty means the
	// compiled-in defaults.
	RulesPath string `json:"rulesPath"`

	// Workers is the batch scoring pool size. 1 means sequential; results
	// are identical either way.
	Workers int `json:"workers"`

	// TopN is the size of the top-risk selection in batch summaries.
	TopN int `json:"topN"`

	// MaxInlineRecords caps scored records echoed in batch responses;
	// larger batches are retrieved via the export endpoint.
	MaxInlineRecords int `json:"maxInlineRecords"`

	// MaxBodyMB caps request bodies on the scoring endpoints.
	MaxBodyMB int `json:"maxBodyMB"`

	// Store holds result store settings.
	Store StoreConfig `json:"store"`

	// EventBus holds bus settings.
	EventBus EventBusConfig `json:"eventBus"`

	// Logging holds logging settings.
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// StoreConfig holds result store settings.
type StoreConfig struct {
	// MaxEntries bounds the number of retained batch results.
	MaxEntries int `json:"maxEntries"`

	// TTLSeconds is how long a result stays retrievable.
	TTLSeconds int `json:"ttlSeconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Workers:          8,
		TopN:             20,
		MaxInlineRecords: 1000,
		MaxBodyMB:        32,
		Store: StoreConfig{
			MaxEntries: 100,
			TTLSeconds: 3600,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ConfigFromEnv returns the default configuration with KESTREL_* environment
// overrides applied. Unset or malformed values keep the default.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("KESTREL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("KESTREL_PORT"); v > 0 {
		cfg.Server.Port = v
	}
	if os.Getenv("KESTREL_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv("KESTREL_RULES"); v != "" {
		cfg.RulesPath = v
	}
	if v := envInt("KESTREL_WORKERS"); v > 0 {
		cfg.Workers = v
	}
	if v := envInt("KESTREL_TOP_N"); v > 0 {
		cfg.TopN = v
	}
	if v := envInt("KESTREL_MAX_INLINE_RECORDS"); v > 0 {
		cfg.MaxInlineRecords = v
	}
	if v := envInt("KESTREL_MAX_BODY_MB"); v > 0 {
		cfg.MaxBodyMB = v
	}
	if v := envInt("KESTREL_STORE_SIZE"); v > 0 {
		cfg.Store.MaxEntries = v
	}
	if v := envInt("KESTREL_STORE_TTL"); v > 0 {
		cfg.Store.TTLSeconds = v
	}
	if v := os.Getenv("KESTREL_BUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	return cfg
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
