// Package config loads the runtime configuration surface: job
// concurrency, chunk sizing, timeouts, and retry/cleanup tuning.
// Settings resolve from, in priority order, environment variables, a
// TOML config file, then built-in defaults.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Settings is the resolved configuration surface.
type Settings struct {
	MaxConcurrentJobs    int
	TargetChunkSize      int
	SaveBatchSize        int
	ConcurrencyBase      int
	ConcurrencyBoost     int
	BoostMode            bool
	ChunkTimeout         time.Duration
	BatchTimeout         time.Duration
	JobTimeout           time.Duration
	MemorySoftLimitMB    uint64
	MaxExtractionRetries int
	JobCleanupAge        time.Duration
	NATSURL              string
}

const envPrefix = "CLINOTECT"

// Load builds a viper instance seeded with the built-in defaults, then
// layers in a TOML config file (if present at configPath) and
// CLINOTECT_-prefixed environment variables, and returns the resolved
// Settings.
func Load(configPath string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("max_concurrent_jobs", 3)
	v.SetDefault("target_chunk_size", 1000)
	v.SetDefault("save_batch_size", 400)
	v.SetDefault("concurrency_base", 4)
	v.SetDefault("concurrency_boost", 2)
	v.SetDefault("boost_mode", false)
	v.SetDefault("chunk_timeout_sec", 120)
	v.SetDefault("batch_timeout_sec", 600)
	v.SetDefault("job_timeout_sec", 7200)
	v.SetDefault("memory_soft_limit_mb", 8192)
	v.SetDefault("max_extraction_retries", 3)
	v.SetDefault("job_cleanup_age_hours", 24)
	v.SetDefault("nats_url", "")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			var fileValues map[string]any
			if _, err := toml.DecodeFile(configPath, &fileValues); err != nil {
				return Settings{}, err
			}
			if err := v.MergeConfigMap(fileValues); err != nil {
				return Settings{}, err
			}
		} else if !os.IsNotExist(err) {
			return Settings{}, err
		}
	}

	return Settings{
		MaxConcurrentJobs:    v.GetInt("max_concurrent_jobs"),
		TargetChunkSize:      v.GetInt("target_chunk_size"),
		SaveBatchSize:        v.GetInt("save_batch_size"),
		ConcurrencyBase:      v.GetInt("concurrency_base"),
		ConcurrencyBoost:     v.GetInt("concurrency_boost"),
		BoostMode:            v.GetBool("boost_mode"),
		ChunkTimeout:         time.Duration(v.GetInt("chunk_timeout_sec")) * time.Second,
		BatchTimeout:         time.Duration(v.GetInt("batch_timeout_sec")) * time.Second,
		JobTimeout:           time.Duration(v.GetInt("job_timeout_sec")) * time.Second,
		MemorySoftLimitMB:    uint64(v.GetInt64("memory_soft_limit_mb")),
		MaxExtractionRetries: v.GetInt("max_extraction_retries"),
		JobCleanupAge:        time.Duration(v.GetInt("job_cleanup_age_hours")) * time.Hour,
		NATSURL:              v.GetString("nats_url"),
	}, nil
}
