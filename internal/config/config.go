package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Port string
	}
	Bookstore struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}
	Dialog struct {
		CloseWait time.Duration
	}
}

func Load(path string) (*Config, error) {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = os.Getenv("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	cfg.Bookstore.BaseURL = os.Getenv("BOOKSTORE_API_BASE_URL")
	if cfg.Bookstore.BaseURL == "" {
		return nil, fmt.Errorf("BOOKSTORE_API_BASE_URL is required")
	}
	cfg.Bookstore.Token = os.Getenv("BOOKSTORE_API_TOKEN")

	var err error
	cfg.Bookstore.Timeout, err = durationEnv("BOOKSTORE_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Dialog.CloseWait, err = durationEnv("DIALOG_CLOSE_WAIT", 300*time.Millisecond)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
