package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of CONFIG_FILE.
type fileConfig struct {
	App struct {
		Name            string        `yaml:"name"`
		Env             string        `yaml:"env"`
		Port            string        `yaml:"port"`
		LogLevel        string        `yaml:"logLevel"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"app"`
	Storage struct {
		DatabaseURL string `yaml:"databaseURL"`
		RedisURL    string `yaml:"redisURL"`
	} `yaml:"storage"`
	WalletAPI struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"walletAPI"`
	Price struct {
		Freshness    time.Duration `yaml:"freshness"`
		PollInterval time.Duration `yaml:"pollInterval"`
		Currencies   []string      `yaml:"currencies"`
	} `yaml:"price"`
	Payments struct {
		Network             string        `yaml:"network"`
		FeeProbeRPS         float64       `yaml:"feeProbeRPS"`
		FeeProbeBurst       int           `yaml:"feeProbeBurst"`
		SubmitRatePerMinute int           `yaml:"submitRatePerMinute"`
		IdempotencyTTL      time.Duration `yaml:"idempotencyTTL"`
		BalanceCacheTTL     time.Duration `yaml:"balanceCacheTTL"`
		Retention           time.Duration `yaml:"retention"`
		SubmitWait          time.Duration `yaml:"submitWait"`
	} `yaml:"payments"`
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// merge copies every value set in the file onto dst. Secrets are read from
// the environment only.
func merge(dst *Config, src fileConfig) error {
	mergeString(&dst.AppName, src.App.Name)
	mergeString(&dst.AppEnv, src.App.Env)
	mergeString(&dst.Port, src.App.Port)
	mergeString(&dst.LogLevel, src.App.LogLevel)
	mergeDuration(&dst.ShutdownPeriod, src.App.ShutdownTimeout)
	mergeString(&dst.DatabaseURL, src.Storage.DatabaseURL)
	mergeString(&dst.RedisURL, src.Storage.RedisURL)
	mergeString(&dst.WalletAPIURL, src.WalletAPI.URL)
	mergeDuration(&dst.WalletAPITimeout, src.WalletAPI.Timeout)
	mergeDuration(&dst.PriceFreshness, src.Price.Freshness)
	mergeDuration(&dst.PricePollInterval, src.Price.PollInterval)
	if src.Price.Currencies != nil {
		list, err := parseCurrencies(src.Price.Currencies)
		if err != nil {
			return fmt.Errorf("config file price.currencies: %w", err)
		}
		dst.PriceCurrencies = list
	}
	mergeString(&dst.BitcoinNetwork, src.Payments.Network)
	if src.Payments.FeeProbeRPS != 0 {
		dst.FeeProbeRPS = src.Payments.FeeProbeRPS
	}
	if src.Payments.FeeProbeBurst != 0 {
		dst.FeeProbeBurst = src.Payments.FeeProbeBurst
	}
	if src.Payments.SubmitRatePerMinute != 0 {
		dst.SubmitRatePerMinute = src.Payments.SubmitRatePerMinute
	}
	mergeDuration(&dst.IdempotencyTTL, src.Payments.IdempotencyTTL)
	mergeDuration(&dst.BalanceCacheTTL, src.Payments.BalanceCacheTTL)
	mergeDuration(&dst.SubmissionRetention, src.Payments.Retention)
	mergeDuration(&dst.SubmitWait, src.Payments.SubmitWait)
	return nil
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
