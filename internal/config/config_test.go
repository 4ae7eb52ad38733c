package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.BlobBackend)
	assert.Equal(t, "Properties", cfg.CRMTable)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("BLOB_BACKEND", "minio")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("CRM_MAX_ATTEMPTS", "5")
	t.Setenv("CRM_BACKOFF", "2s")
	t.Setenv("AUTOSAVE_DELAY", "1500ms")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, "minio", cfg.BlobBackend)
	assert.True(t, cfg.S3UseSSL)
	assert.Equal(t, 5, cfg.CRMMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.CRMBackoff)
	assert.Equal(t, 1500*time.Millisecond, cfg.AutosaveDelay)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CRM_MAX_ATTEMPTS", "many")
	t.Setenv("CRM_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 3, cfg.CRMMaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.CRMTimeout)
}

func TestCRMEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.CRMEnabled())

	cfg.CRMAPIKey = "key"
	cfg.CRMBaseID = "app123"
	assert.True(t, cfg.CRMEnabled())
}
