package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr         string
	DataDir      string
	CachePath    string // empty disables the snapshot cache
	Workers      int
	QueryTimeout time.Duration
}

func loadConfig() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Addr:      getenvDefault("HEADWAY_ADDR", ":5001"),
		DataDir:   getenvDefault("HEADWAY_DATA_DIR", "gtfs_data"),
		CachePath: os.Getenv("HEADWAY_CACHE"),
	}

	if v := os.Getenv("HEADWAY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid HEADWAY_WORKERS: %q", v)
		}
		cfg.Workers = n
	}

	if v := os.Getenv("HEADWAY_QUERY_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid HEADWAY_QUERY_TIMEOUT_MS: %q", v)
		}
		cfg.QueryTimeout = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
