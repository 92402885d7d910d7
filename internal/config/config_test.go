package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/config"
)

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	settings, err := config.Load("")

	assert.NoError(t, err)
	assert.Equal(t, 3, settings.MaxConcurrentJobs)
	assert.Equal(t, 1000, settings.TargetChunkSize)
	assert.Equal(t, 400, settings.SaveBatchSize)
	assert.Equal(t, 4, settings.ConcurrencyBase)
	assert.Equal(t, 2, settings.ConcurrencyBoost)
	assert.Equal(t, 120*time.Second, settings.ChunkTimeout)
	assert.Equal(t, 600*time.Second, settings.BatchTimeout)
	assert.Equal(t, 7200*time.Second, settings.JobTimeout)
	assert.Equal(t, uint64(8192), settings.MemorySoftLimitMB)
	assert.Equal(t, 3, settings.MaxExtractionRetries)
	assert.Equal(t, 24*time.Hour, settings.JobCleanupAge)
}

func TestLoadMissingConfigFileFallsBackToDefaults(t *testing.T) {
	settings, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))

	assert.NoError(t, err)
	assert.Equal(t, 3, settings.MaxConcurrentJobs)
}

func TestLoadMergesTOMLFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinotect.toml")
	assert.NoError(t, os.WriteFile(path, []byte("max_concurrent_jobs = 8\nsave_batch_size = 250\n"), 0o644))

	settings, err := config.Load(path)

	assert.NoError(t, err)
	assert.Equal(t, 8, settings.MaxConcurrentJobs)
	assert.Equal(t, 250, settings.SaveBatchSize)
	// untouched keys keep their default
	assert.Equal(t, 1000, settings.TargetChunkSize)
}

func TestLoadEnvVarOverridesDefault(t *testing.T) {
	t.Setenv("CLINOTECT_MAX_CONCURRENT_JOBS", "11")

	settings, err := config.Load("")

	assert.NoError(t, err)
	assert.Equal(t, 11, settings.MaxConcurrentJobs)
}

func TestLoadEnvVarOverridesTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinotect.toml")
	assert.NoError(t, os.WriteFile(path, []byte("max_concurrent_jobs = 8\n"), 0o644))
	t.Setenv("CLINOTECT_MAX_CONCURRENT_JOBS", "20")

	settings, err := config.Load(path)

	assert.NoError(t, err)
	assert.Equal(t, 20, settings.MaxConcurrentJobs)
}

func TestLoadLocalOverrideReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"storage_backend: dolt\nsqlite_path: /var/data/clinotect.db\ndictionary_seed: /etc/clinotect/seed.csv\n",
	), 0o644))

	override := config.LoadLocalOverride(dir)

	assert.Equal(t, "dolt", override.StorageBackend)
	assert.Equal(t, "/var/data/clinotect.db", override.SQLitePath)
	assert.Equal(t, "/etc/clinotect/seed.csv", override.DictionarySeed)
}

func TestLoadLocalOverrideMissingFileReturnsEmptyStruct(t *testing.T) {
	override := config.LoadLocalOverride(t.TempDir())
	assert.Equal(t, &config.LocalOverride{}, override)
}

func TestLoadLocalOverrideUnparseableFileReturnsEmptyStruct(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("not: [valid: yaml"), 0o644))

	override := config.LoadLocalOverride(dir)

	assert.Equal(t, &config.LocalOverride{}, override)
}
