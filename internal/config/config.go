// Package config provides configuration management for the engine.
//
// Configuration is loaded from environment variables, with a .env file
// in the working directory loaded first if present:
//
//  1. Load .env file (if present) into the process environment.
//  2. Read environment variables, falling back to documented defaults.
//
// Credentials are never logged.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable of the running engine.
type Config struct {
	DataDir  string // base directory for sqlite databases and backtest artifacts
	LogLevel string // debug, info, warn, error
	DevMode  bool

	OKX        OKXConfig
	Risk       RiskConfig
	Monitoring MonitoringConfig
	S3         S3Config
}

// OKXConfig holds exchange credentials and connection tunables.
type OKXConfig struct {
	APIKey       string
	APISecret    string
	Passphrase   string
	Simulated    bool // read from OKX_SIMULATED; no client in this module reads it, so it does not change the endpoints used
	RESTBaseURL  string
	WSPublicURL  string
	WSPrivateURL string
}

// RiskConfig holds book-wide risk limits and VaR engine tunables.
type RiskConfig struct {
	MaxOrderNotional    decimal.Decimal
	MaxPositionNotional decimal.Decimal
	MaxLeverage         decimal.Decimal
	MaxDailyLossLimit   decimal.Decimal
	VaRConfidence       float64
	VaRLookbackDays     int
}

// MonitoringConfig holds alerting and reconciliation tunables.
type MonitoringConfig struct {
	ReconciliationInterval time.Duration
	AckTimeout             time.Duration
}

// S3Config holds cold-storage archival settings. Empty Bucket disables
// archival entirely.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("SENTINEL_DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	maxOrderNotional, err := getEnvAsDecimal("RISK_MAX_ORDER_NOTIONAL", "50000")
	if err != nil {
		return nil, err
	}
	maxPositionNotional, err := getEnvAsDecimal("RISK_MAX_POSITION_NOTIONAL", "250000")
	if err != nil {
		return nil, err
	}
	maxLeverage, err := getEnvAsDecimal("RISK_MAX_LEVERAGE", "10")
	if err != nil {
		return nil, err
	}
	maxDailyLoss, err := getEnvAsDecimal("RISK_MAX_DAILY_LOSS", "10000")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:  dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		OKX: OKXConfig{
			APIKey:       getEnv("OKX_API_KEY", ""),
			APISecret:    getEnv("OKX_API_SECRET", ""),
			Passphrase:   getEnv("OKX_PASSPHRASE", ""),
			Simulated:    getEnvAsBool("OKX_SIMULATED", true),
			RESTBaseURL:  getEnv("OKX_REST_BASE_URL", "https://www.okx.com"),
			WSPublicURL:  getEnv("OKX_WS_PUBLIC_URL", "wss://ws.okx.com:8443/ws/v5/public"),
			WSPrivateURL: getEnv("OKX_WS_PRIVATE_URL", "wss://ws.okx.com:8443/ws/v5/private"),
		},
		Risk: RiskConfig{
			MaxOrderNotional:    maxOrderNotional,
			MaxPositionNotional: maxPositionNotional,
			MaxLeverage:         maxLeverage,
			MaxDailyLossLimit:   maxDailyLoss,
			VaRConfidence:       getEnvAsFloat("RISK_VAR_CONFIDENCE", 0.99),
			VaRLookbackDays:     getEnvAsInt("RISK_VAR_LOOKBACK_DAYS", 250),
		},
		Monitoring: MonitoringConfig{
			ReconciliationInterval: getEnvAsDuration("RECONCILIATION_INTERVAL", 30*time.Second),
			AckTimeout:             getEnvAsDuration("ORDER_ACK_TIMEOUT", 10*time.Second),
		},
		S3: S3Config{
			Bucket: getEnv("COLDSTORE_S3_BUCKET", ""),
			Region: getEnv("COLDSTORE_S3_REGION", "us-east-1"),
			Prefix: getEnv("COLDSTORE_S3_PREFIX", "sentinel-okx"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that Load cannot express via defaults alone.
func (c *Config) Validate() error {
	if !c.DevMode && (c.OKX.APIKey == "" || c.OKX.APISecret == "" || c.OKX.Passphrase == "") {
		return fmt.Errorf("config: OKX credentials are required outside dev mode")
	}
	if c.Risk.VaRConfidence <= 0 || c.Risk.VaRConfidence >= 1 {
		return fmt.Errorf("config: RISK_VAR_CONFIDENCE must be in (0,1), got %f", c.Risk.VaRConfidence)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvAsDecimal(key, fallback string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: invalid decimal for %s: %w", key, err)
	}
	return d, nil
}
