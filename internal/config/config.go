package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultModuleAddress identifies the position adjuster when MODULE_ADDRESS is unset.
const DefaultModuleAddress = "0x00000000000000000000000000000000000a0d15"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	HTTPPort              string
	AdminAPIKey           string
	SeedFile              string
	ModuleAddress         common.Address
	KeeperAddress         common.Address
	KeeperInterval        time.Duration
	KeeperAutoAdjust      bool
	AdjustPaused          bool
	GoogleSheetsID        string
	GoogleCredentialsJSON string
	ExportLimit           int
}

// Load reads configuration from environment variables with sensible defaults.
// An empty DATABASE_URL selects the in-memory store.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefault("DATABASE_URL", ""),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           envOrDefault("ADMIN_API_KEY", ""),
		SeedFile:              envOrDefault("SEED_FILE", ""),
		ModuleAddress:         envOrDefaultAddress("MODULE_ADDRESS", common.HexToAddress(DefaultModuleAddress)),
		KeeperAddress:         envOrDefaultAddress("KEEPER_ADDRESS", common.Address{}),
		KeeperInterval:        envOrDefaultDuration("KEEPER_INTERVAL", 1*time.Hour),
		KeeperAutoAdjust:      envOrDefaultBool("KEEPER_AUTO_ADJUST", false),
		AdjustPaused:          envOrDefaultBool("ADJUST_PAUSED", false),
		GoogleSheetsID:        envOrDefault("GOOGLE_SHEETS_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		ExportLimit:           envOrDefaultInt("EXPORT_LIMIT", 500),
	}
}

// SheetsEnabled reports whether both Google Sheets settings are present.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func envOrDefaultAddress(key string, defaultVal common.Address) common.Address {
	if v := os.Getenv(key); v != "" {
		if !common.IsHexAddress(v) {
			slog.Warn("invalid address env var, using default", "key", key, "value", v, "default", defaultVal.Hex())
			return defaultVal
		}
		return common.HexToAddress(v)
	}
	return defaultVal
}
