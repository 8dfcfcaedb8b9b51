package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration of the channel service.
type Config struct {
	HTTPPort     int
	SQLiteDSN    string
	PollInterval time.Duration
	MaxRetries   int
	TypingTTL    time.Duration
}

// fileConfig is the YAML shape. Durations are strings so the file can use the
// same "30s" notation as the environment.
type fileConfig struct {
	HTTPPort     *int    `yaml:"http_port"`
	SQLiteDSN    *string `yaml:"sqlite_dsn"`
	PollInterval *string `yaml:"poll_interval"`
	MaxRetries   *int    `yaml:"max_retries"`
	TypingTTL    *string `yaml:"typing_ttl"`
}

// Load assembles configuration from defaults, an optional YAML file named by
// CHANNEL_CONFIG_FILE, and environment variables. The environment wins over
// the file.
//
// The loader applies sensible defaults for optional fields while validating
// provided values and reporting localized error messages for bad entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     8080,
		SQLiteDSN:    "file:channel.db?_foreign_keys=on",
		PollInterval: 30 * time.Second,
		MaxRetries:   3,
		TypingTTL:    time.Second,
	}

	if path := strings.TrimSpace(os.Getenv("CHANNEL_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %w", err)
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("設定ファイルの形式が不正です: %w", err)
		}
		if err := file.apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("CHANNEL_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "CHANNEL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("CHANNEL_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if pollValue := strings.TrimSpace(os.Getenv("CHANNEL_POLL_INTERVAL")); pollValue != "" {
		poll, err := time.ParseDuration(pollValue)
		if err != nil || poll <= 0 {
			invalid = append(invalid, "CHANNEL_POLL_INTERVAL")
		} else {
			cfg.PollInterval = poll
		}
	}

	if retriesValue := strings.TrimSpace(os.Getenv("CHANNEL_MAX_RETRIES")); retriesValue != "" {
		retries, err := strconv.Atoi(retriesValue)
		if err != nil || retries < 0 {
			invalid = append(invalid, "CHANNEL_MAX_RETRIES")
		} else {
			cfg.MaxRetries = retries
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("CHANNEL_TYPING_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "CHANNEL_TYPING_TTL")
		} else {
			cfg.TypingTTL = ttl
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func (f fileConfig) apply(cfg *Config) error {
	if f.HTTPPort != nil {
		if *f.HTTPPort <= 0 {
			return fmt.Errorf("設定ファイルの値が不正です: http_port")
		}
		cfg.HTTPPort = *f.HTTPPort
	}
	if f.SQLiteDSN != nil && strings.TrimSpace(*f.SQLiteDSN) != "" {
		cfg.SQLiteDSN = strings.TrimSpace(*f.SQLiteDSN)
	}
	if f.PollInterval != nil {
		poll, err := time.ParseDuration(strings.TrimSpace(*f.PollInterval))
		if err != nil || poll <= 0 {
			return fmt.Errorf("設定ファイルの値が不正です: poll_interval")
		}
		cfg.PollInterval = poll
	}
	if f.MaxRetries != nil {
		if *f.MaxRetries < 0 {
			return fmt.Errorf("設定ファイルの値が不正です: max_retries")
		}
		cfg.MaxRetries = *f.MaxRetries
	}
	if f.TypingTTL != nil {
		ttl, err := time.ParseDuration(strings.TrimSpace(*f.TypingTTL))
		if err != nil || ttl <= 0 {
			return fmt.Errorf("設定ファイルの値が不正です: typing_ttl")
		}
		cfg.TypingTTL = ttl
	}
	return nil
}
