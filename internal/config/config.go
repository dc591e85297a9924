package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/congo-pay/sendbtc/internal/currency"
)

const (
	defaultAppName          = "sendbtc"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultWalletAPITimeout = 30 * time.Second
	defaultPriceFreshness   = 5 * time.Minute
	defaultPricePoll        = 30 * time.Second
	defaultFeeProbeRPS      = 5
	defaultFeeProbeBurst    = 10
	defaultSubmitPerMinute  = 10
	defaultBitcoinNetwork   = "mainnet"
	defaultBalanceCacheTTL  = 10 * time.Minute
	defaultRetention        = 30 * time.Minute
	defaultSubmitWait       = 20 * time.Second
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	configFileEnvVar        = "CONFIG_FILE"
)

// Config captures application runtime configuration. Values come from the
// optional YAML file named by CONFIG_FILE, then from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// WalletAPIURL is the GraphQL endpoint. Empty selects the built-in simulator in development.
	WalletAPIURL     string
	WalletAPITimeout time.Duration
	JWTSecret        string
	SpendingPINHash  string

	PriceFreshness    time.Duration
	PricePollInterval time.Duration
	PriceCurrencies   []currency.Currency

	FeeProbeRPS         float64
	FeeProbeBurst       int
	SubmitRatePerMinute int
	BitcoinNetwork      string
	BalanceCacheTTL     time.Duration
	SubmissionRetention time.Duration
	// SubmitWait bounds how long a submit request waits for the outcome
	// before answering 202 with the submission still in flight.
	SubmitWait time.Duration
}

// Load reads the configuration file, if any, and the environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv(configFileEnvVar); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := merge(&cfg, fc); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		AppName:             defaultAppName,
		AppEnv:              defaultAppEnv,
		Port:                defaultPort,
		LogLevel:            defaultLogLevel,
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		WalletAPITimeout:    defaultWalletAPITimeout,
		PriceFreshness:      defaultPriceFreshness,
		PricePollInterval:   defaultPricePoll,
		PriceCurrencies:     []currency.Currency{currency.USD},
		FeeProbeRPS:         defaultFeeProbeRPS,
		FeeProbeBurst:       defaultFeeProbeBurst,
		SubmitRatePerMinute: defaultSubmitPerMinute,
		BitcoinNetwork:      defaultBitcoinNetwork,
		BalanceCacheTTL:     defaultBalanceCacheTTL,
		SubmissionRetention: defaultRetention,
		SubmitWait:          defaultSubmitWait,
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.AppName, "APP_NAME")
	setString(&cfg.AppEnv, "APP_ENV")
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.WalletAPIURL, "WALLET_API_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.SpendingPINHash, "SPENDING_PIN_HASH")
	setString(&cfg.BitcoinNetwork, "BITCOIN_NETWORK")

	if err := setSecondsOrDuration(&cfg.ShutdownPeriod, shutdownSecondsEnvVar, shutdownDurationEnvVar); err != nil {
		return err
	}
	if err := setSecondsOrDuration(&cfg.IdempotencyTTL, idemTTLSecondsEnvVar, idemTTLDurEnvVar); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"WALLET_API_TIMEOUT":   &cfg.WalletAPITimeout,
		"PRICE_FRESHNESS":      &cfg.PriceFreshness,
		"PRICE_POLL_INTERVAL":  &cfg.PricePollInterval,
		"BALANCE_CACHE_TTL":    &cfg.BalanceCacheTTL,
		"SUBMISSION_RETENTION": &cfg.SubmissionRetention,
		"SUBMIT_WAIT":          &cfg.SubmitWait,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}

	if v := os.Getenv("PRICE_CURRENCIES"); v != "" {
		list, err := parseCurrencies(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("invalid PRICE_CURRENCIES: %w", err)
		}
		cfg.PriceCurrencies = list
	}
	if v := os.Getenv("FEE_PROBE_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid FEE_PROBE_RPS: %w", err)
		}
		cfg.FeeProbeRPS = rps
	}
	if err := setInt(&cfg.FeeProbeBurst, "FEE_PROBE_BURST"); err != nil {
		return err
	}
	return setInt(&cfg.SubmitRatePerMinute, "SUBMIT_RATE_PER_MINUTE")
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.DatabaseURL == "" && !c.IsDev() {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.WalletAPIURL == "" && !c.IsDev() {
		return fmt.Errorf("WALLET_API_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if _, err := c.ChainParams(); err != nil {
		return err
	}
	if c.PricePollInterval <= 0 {
		return fmt.Errorf("PRICE_POLL_INTERVAL must be positive")
	}
	if c.SubmitWait <= 0 {
		return fmt.Errorf("SUBMIT_WAIT must be positive")
	}
	return nil
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// ChainParams maps BitcoinNetwork onto btcd's network parameters.
func (c Config) ChainParams() (*chaincfg.Params, error) {
	switch strings.ToLower(c.BitcoinNetwork) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown BITCOIN_NETWORK %q", c.BitcoinNetwork)
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func parseCurrencies(codes []string) ([]currency.Currency, error) {
	out := make([]currency.Currency, 0, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		c, err := currency.Parse(code)
		if err != nil {
			return nil, err
		}
		if !c.Native() {
			out = append(out, c)
		}
	}
	return out, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setSecondsOrDuration(dst *time.Duration, secondsKey, durationKey string) error {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		*dst = time.Duration(seconds) * time.Second
		return nil
	}
	return setDuration(dst, durationKey)
}
