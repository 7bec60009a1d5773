package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "s3", cfg.S3.Driver)
	assert.Equal(t, 3, cfg.S3.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.S3.OperationTimeout)
	assert.Equal(t, int64(100*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 20, cfg.Storage.MaxBatchUpload)
	assert.Equal(t, 100, cfg.Storage.MaxBatchDelete)
	assert.Equal(t, time.Hour, cfg.Presign.TTL)
	assert.False(t, cfg.Storage.LegacyNaming)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
s3:
  driver: memory
  region: us-east-1
storage:
  legacy_naming: true
presign:
  ttl: 15m
  custom_hosts: ["minio.local:9000"]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("S3_REGION", "eu-west-1")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.S3.Driver)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
	assert.True(t, cfg.Storage.LegacyNaming)
	assert.Equal(t, 15*time.Minute, cfg.Presign.TTL)
	assert.Equal(t, []string{"minio.local:9000"}, cfg.Presign.CustomHosts)
}
