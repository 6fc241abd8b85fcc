package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 2, cfg.Scanner.RequiredReads)
	assert.Equal(t, 2*time.Second, cfg.Scanner.Cooldown)
	assert.Equal(t, 80*time.Millisecond, cfg.Scanner.Throttle)
	assert.Equal(t, 100*time.Millisecond, cfg.Scanner.FeedbackDelay)
	assert.Equal(t, 300*time.Millisecond, cfg.Scanner.SettleDelay)
	assert.Equal(t, 10*time.Second, cfg.Scanner.AcquireTimeout)
	assert.Equal(t, scanner.GroceryFormats, cfg.Scanner.Formats)
	require.NotNil(t, cfg.Scanner.Crop)
	assert.Equal(t, camera.DefaultCrop, *cfg.Scanner.Crop)
	assert.False(t, cfg.Scanner.AllowAlphanumeric)
	assert.True(t, cfg.Scanner.Enabled)
	assert.Equal(t, 10, cfg.Business.LowStockThreshold)
	assert.Equal(t, "MAD", cfg.Business.Currency)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SCAN_REQUIRED_READS", "3")
	t.Setenv("SCAN_COOLDOWN", "1500ms")
	t.Setenv("SCAN_FORMATS", "qr_code,code_128")
	t.Setenv("SCAN_CROP", "false")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "http://localhost:3000, https://pos.local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Scanner.RequiredReads)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scanner.Cooldown)
	assert.Equal(t, []scanner.Format{scanner.FormatQR, scanner.FormatCode128}, cfg.Scanner.Formats)
	assert.Nil(t, cfg.Scanner.Crop)
	assert.Equal(t, []string{"http://localhost:3000", "https://pos.local"}, cfg.HTTP.AllowedOrigins)

	sc := cfg.SessionConfig()
	assert.Equal(t, 3, sc.RequiredReads)
	assert.Nil(t, cfg.SamplerConfig().Crop)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOW_STOCK_THRESHOLD=4\nCURRENCY=EUR\n"), 0o600))
	t.Setenv("CURRENCY", "USD")
	t.Cleanup(func() { os.Unsetenv("LOW_STOCK_THRESHOLD") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Business.LowStockThreshold)
	assert.Equal(t, "USD", cfg.Business.Currency)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCAN_THROTTLE", "fast")
	t.Setenv("REDIS_DB", "one")
	t.Setenv("SCAN_FORMATS", "pdf417")
	t.Setenv("SCAN_REQUIRED_READS", "0")

	_, err := Load()

	require.Error(t, err)
	assert.ErrorContains(t, err, "SCAN_THROTTLE")
	assert.ErrorContains(t, err, "REDIS_DB")
	assert.ErrorIs(t, err, scanner.ErrUnknownFormat)
	assert.ErrorContains(t, err, "SCAN_REQUIRED_READS")
}
