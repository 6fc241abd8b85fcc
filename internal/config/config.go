// Package config loads the runtime configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scanner   ScannerConfig
	Business  BusinessConfig
	Reconcile ReconcileConfig
	Log       LogConfig
}

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	// AllowedOrigins restricts websocket upgrades; empty allows same-origin only.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Path           string
	MigrationsPath string
}

type RedisConfig struct {
	// Addr is empty when reports are not cached.
	Addr      string
	Password  string
	DB        int
	ReportTTL time.Duration
}

type ScannerConfig struct {
	// Enabled false leaves manual entry as the only way to add products.
	Enabled           bool
	RequiredReads     int
	Cooldown          time.Duration
	Throttle          time.Duration
	FeedbackDelay     time.Duration
	SettleDelay       time.Duration
	AcquireTimeout    time.Duration
	Zoom              float64
	Crop              *camera.CropRegion
	Formats           []scanner.Format
	AllowAlphanumeric bool
}

type BusinessConfig struct {
	LowStockThreshold int
	Currency          string
}

type ReconcileConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads envFiles (".env" when none are given) into the process environment
// without overriding variables already set, then builds the configuration.
func Load(envFiles ...string) (*Config, error) {
	explicit := len(envFiles) > 0
	if !explicit {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	p := &parser{}
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:               getEnv("HTTP_PORT", "8080"),
			RequestTimeout:     p.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    p.duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxRequestBodySize: int64(p.integer("HTTP_MAX_BODY_BYTES", 1<<20)),
			AllowedOrigins:     list(getEnv("HTTP_ALLOWED_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			Path:           getEnv("DB_PATH", "mahali.db"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "internal/repository/migrations"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        p.integer("REDIS_DB", 0),
			ReportTTL: p.duration("REPORT_CACHE_TTL", 5*time.Minute),
		},
		Scanner: ScannerConfig{
			Enabled:           p.boolean("SCAN_ENABLED", true),
			RequiredReads:     p.integer("SCAN_REQUIRED_READS", 2),
			Cooldown:          p.duration("SCAN_COOLDOWN", 2*time.Second),
			Throttle:          p.duration("SCAN_THROTTLE", 80*time.Millisecond),
			FeedbackDelay:     p.duration("SCAN_FEEDBACK_DELAY", 100*time.Millisecond),
			SettleDelay:       p.duration("SCAN_SETTLE_DELAY", 300*time.Millisecond),
			AcquireTimeout:    p.duration("CAMERA_ACQUIRE_TIMEOUT", 10*time.Second),
			Zoom:              p.float("CAMERA_ZOOM", 1.5),
			AllowAlphanumeric: p.boolean("SCAN_ALLOW_ALPHANUMERIC", false),
		},
		Business: BusinessConfig{
			LowStockThreshold: p.integer("LOW_STOCK_THRESHOLD", 10),
			Currency:          getEnv("CURRENCY", "MAD"),
		},
		Reconcile: ReconcileConfig{
			Interval:    p.duration("RECONCILE_INTERVAL", 30*time.Second),
			BatchSize:   p.integer("RECONCILE_BATCH_SIZE", 100),
			MaxAttempts: p.integer("RECONCILE_MAX_ATTEMPTS", 20),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if p.boolean("SCAN_CROP", true) {
		crop := camera.CropRegion{
			Top:    p.integer("SCAN_CROP_TOP", camera.DefaultCrop.Top),
			Bottom: p.integer("SCAN_CROP_BOTTOM", camera.DefaultCrop.Bottom),
			Left:   p.integer("SCAN_CROP_LEFT", camera.DefaultCrop.Left),
			Right:  p.integer("SCAN_CROP_RIGHT", camera.DefaultCrop.Right),
		}
		cfg.Scanner.Crop = &crop
	}

	formats, err := scanner.ParseFormats(getEnv("SCAN_FORMATS", "ean_13,ean_8,upc_a"))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("SCAN_FORMATS: %w", err))
	}
	cfg.Scanner.Formats = formats

	if cfg.Scanner.RequiredReads < 1 {
		p.errs = append(p.errs, fmt.Errorf("SCAN_REQUIRED_READS: must be at least 1"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) SamplerConfig() camera.SamplerConfig {
	return camera.SamplerConfig{
		Width:          1280,
		Height:         720,
		Zoom:           c.Scanner.Zoom,
		AcquireTimeout: c.Scanner.AcquireTimeout,
		Crop:           c.Scanner.Crop,
	}
}

func (c *Config) SessionConfig() scanner.SessionConfig {
	return scanner.SessionConfig{
		Facing:        camera.FacingRear,
		RequiredReads: c.Scanner.RequiredReads,
		Cooldown:      c.Scanner.Cooldown,
		Throttle:      c.Scanner.Throttle,
		FeedbackDelay: c.Scanner.FeedbackDelay,
		SettleDelay:   c.Scanner.SettleDelay,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
