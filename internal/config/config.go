package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all agent configuration
type Config struct {
	ServerAddress string   `json:"serverAddress"`
	Storage       Storage  `json:"storage"`
	Remote        Remote   `json:"remote"`
	Sync          Sync     `json:"sync"`
	Security      Security `json:"security"`
}

// Storage selects and locates the local persistence backend.
// Backend "auto" tries SQLite and degrades to the key-value store;
// "sqlite" and "bolt" force one engine.
type Storage struct {
	Backend    string `json:"backend"`
	SQLitePath string `json:"sqlitePath"`
	BoltPath   string `json:"boltPath"`
}

// Remote configures the upstream survey backend
type Remote struct {
	BaseURL              string `json:"baseUrl"`
	APIToken             string `json:"apiToken"`
	ProbeIntervalSeconds int    `json:"probeIntervalSeconds"`
}

// Sync configures the reconciliation engine. MaxAttempts <= 0 retries
// failing records forever.
type Sync struct {
	MaxAttempts int  `json:"maxAttempts"`
	AutoStart   bool `json:"autoStart"`
}

// Security configuration for the loopback API
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: "127.0.0.1:7410",
		Storage: Storage{
			Backend:    "auto",
			SQLitePath: "surveysync.db",
			BoltPath:   "surveysync.bolt",
		},
		Remote: Remote{
			ProbeIntervalSeconds: 30,
		},
		Sync: Sync{
			MaxAttempts: 5,
			AutoStart:   true,
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dbPath := os.Getenv("SQLITE_PATH"); dbPath != "" {
		cfg.Storage.SQLitePath = dbPath
	}
	if boltPath := os.Getenv("BOLT_PATH"); boltPath != "" {
		cfg.Storage.BoltPath = boltPath
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}
	if token := os.Getenv("REMOTE_API_TOKEN"); token != "" {
		cfg.Remote.APIToken = token
	}
	if interval := os.Getenv("PROBE_INTERVAL_SECONDS"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Remote.ProbeIntervalSeconds = seconds
		}
	}
	if attempts := os.Getenv("SYNC_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			cfg.Sync.MaxAttempts = n
		}
	}
	if autoStart := os.Getenv("SYNC_AUTO_START"); autoStart != "" {
		cfg.Sync.AutoStart = autoStart == "true" || autoStart == "1"
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}

	// Ensure the data directory exists before either backend opens
	for _, path := range []string{cfg.Storage.SQLitePath, cfg.Storage.BoltPath} {
		dir := filepath.Dir(path)
		if dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
