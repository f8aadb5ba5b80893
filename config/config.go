package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port string

	// Board
	BoardWidth  int
	BoardHeight int

	// Client viewport hints, passed through in init-board
	MinZoom float64
	MaxZoom float64

	// Paint quota
	MaxPixels      int
	RefillInterval time.Duration
	IdleWindow     time.Duration

	// Persistence
	DataDir          string
	AutosaveInterval time.Duration
	EnableBackup     bool
	MaxBackups       int

	// Identity
	VerifyURL     string
	SessionSecret []byte
	SessionTTL    time.Duration
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Port:             "3000",
		BoardWidth:       100,
		BoardHeight:      100,
		MinZoom:          0.5,
		MaxZoom:          20,
		MaxPixels:        50,
		RefillInterval:   60 * time.Second,
		IdleWindow:       5 * 60 * time.Second,
		DataDir:          "data",
		AutosaveInterval: 5 * time.Minute,
		EnableBackup:     true,
		MaxBackups:       10,
		VerifyURL:        "https://api.example.com/v1/token/verify",
		SessionSecret:    []byte("pixeldraw-dev-secret"),
		SessionTTL:       30 * 24 * time.Hour,
	}
}

// LoadFromEnv loads configuration from the environment, reading a .env file
// first when one exists.
func LoadFromEnv() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg := Default()

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	setInt(&cfg.BoardWidth, "BOARD_WIDTH")
	setInt(&cfg.BoardHeight, "BOARD_HEIGHT")
	setFloat(&cfg.MinZoom, "MIN_ZOOM")
	setFloat(&cfg.MaxZoom, "MAX_ZOOM")
	setInt(&cfg.MaxPixels, "MAX_PIXELS")
	setDuration(&cfg.RefillInterval, "REFILL_INTERVAL_SECONDS", time.Second)
	setDuration(&cfg.AutosaveInterval, "AUTOSAVE_INTERVAL_MINUTES", time.Minute)
	setInt(&cfg.MaxBackups, "MAX_BACKUPS")

	if v := os.Getenv("ENABLE_BACKUP"); v != "" {
		cfg.EnableBackup = v != "false" && v != "0"
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	if url := os.Getenv("VERIFY_URL"); url != "" {
		cfg.VerifyURL = url
	}

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = []byte(secret)
	}

	setDuration(&cfg.SessionTTL, "SESSION_TTL_HOURS", time.Hour)

	// The idle sweep window tracks the refill interval so buckets survive
	// long enough to be refilled at least once.
	cfg.IdleWindow = 5 * cfg.RefillInterval

	return cfg
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string, unit time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * unit
		}
	}
}
