package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
)

type Config struct {
	// Chain settings
	ChainWSURL       string
	FactoryAddress   string
	NativeAddress    string
	StableAAddress   string
	StableBAddress   string
	SignerPrivateKey string
	ChainCallTimeout time.Duration

	// Subscription lifecycle
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// Analysis backend
	AnalysisBaseURL string
	AnalysisAPIKey  string
	HTTPTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	AnalysisRPS     float64

	// Detector
	IgnoreTestTokens bool
	MaxTokens        int

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		// Chain
		ChainWSURL:       getEnv("CHAIN_WS_URL", ""),
		FactoryAddress:   getEnv("FACTORY_ADDRESS", constants.DefaultFactoryAddress),
		NativeAddress:    getEnv("QUOTE_NATIVE_ADDRESS", constants.DefaultNativeAddress),
		StableAAddress:   getEnv("QUOTE_STABLE_A_ADDRESS", constants.DefaultStableAAddress),
		StableBAddress:   getEnv("QUOTE_STABLE_B_ADDRESS", constants.DefaultStableBAddress),
		SignerPrivateKey: getEnv("SIGNER_PRIVATE_KEY", ""),
		ChainCallTimeout: getDurationEnv("CHAIN_CALL_TIMEOUT", constants.DefaultChainCallTimeout),

		ReconnectDelay:    getDurationEnv("RECONNECT_DELAY", time.Second),
		MaxReconnectDelay: getDurationEnv("MAX_RECONNECT_DELAY", 30*time.Second),

		// Analysis
		AnalysisBaseURL: getEnv("ANALYSIS_BASE_URL", ""),
		AnalysisAPIKey:  getEnv("ANALYSIS_API_KEY", ""),
		HTTPTimeout:     getDurationEnv("HTTP_TIMEOUT", constants.DefaultAnalysisTimeout),
		MaxRetries:      getIntEnv("MAX_RETRIES", 3),
		RetryBackoff:    getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),
		AnalysisRPS:     getFloatEnv("ANALYSIS_RPS", 10),

		IgnoreTestTokens: getBoolEnv("IGNORE_TEST_TOKENS", true),
		MaxTokens:        getIntEnv("MAX_TOKENS", constants.DefaultMaxTokens),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "detector"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ChainWSURL == "" {
		errs = append(errs, errors.New("CHAIN_WS_URL is required"))
	} else if u, err := url.Parse(c.ChainWSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("CHAIN_WS_URL must be a ws:// or wss:// url, got %q", c.ChainWSURL))
	}

	if c.AnalysisBaseURL == "" {
		errs = append(errs, errors.New("ANALYSIS_BASE_URL is required"))
	} else if u, err := url.Parse(c.AnalysisBaseURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("ANALYSIS_BASE_URL is not a valid url: %q", c.AnalysisBaseURL))
	}

	for name, addr := range map[string]string{
		"FACTORY_ADDRESS":        c.FactoryAddress,
		"QUOTE_NATIVE_ADDRESS":   c.NativeAddress,
		"QUOTE_STABLE_A_ADDRESS": c.StableAAddress,
		"QUOTE_STABLE_B_ADDRESS": c.StableBAddress,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Errorf("%s is not a hex address: %q", name, addr))
		}
	}

	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must be >= 0"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, errors.New("MAX_TOKENS must be > 0"))
	}
	if c.AnalysisRPS <= 0 {
		errs = append(errs, errors.New("ANALYSIS_RPS must be > 0"))
	}
	if c.ReconnectDelay <= 0 || c.MaxReconnectDelay < c.ReconnectDelay {
		errs = append(errs, errors.New("RECONNECT_DELAY must be > 0 and <= MAX_RECONNECT_DELAY"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
