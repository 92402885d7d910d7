package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/clinotect/noteengine/internal/config"
	"github.com/clinotect/noteengine/internal/extraction/chunker"
	"github.com/clinotect/noteengine/internal/jobs"
	"github.com/clinotect/noteengine/internal/progress"
	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/storage/factory"
)

// localConfigDir holds the per-deployment override file read by
// config.LoadLocalOverride.
const localConfigDir = ".clinotect"

// app bundles the pieces every subcommand needs: an open store, a
// progress bus wired to it, and a job manager wired to both.
type app struct {
	store    storage.Store
	bus      *progress.Bus
	jobs     *jobs.Manager
	nats     *nats.Conn
	seedPath string
}

// resolveFlag returns the flag's value unless the flag was left at its
// default and the local override file supplies one. An explicit flag
// always wins over the file.
func resolveFlag(cmd *cobra.Command, name, flagValue, overrideValue string) string {
	if !cmd.Flags().Changed(name) && overrideValue != "" {
		return overrideValue
	}
	return flagValue
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	settings, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	override := config.LoadLocalOverride(localConfigDir)

	backend := resolveFlag(cmd, "storage", storageBackend, override.StorageBackend)
	dbPath := resolveFlag(cmd, "sqlite-path", sqlitePath, override.SQLitePath)
	seedPath := resolveFlag(cmd, "dictionary-seed", dictionarySeed, override.DictionarySeed)

	store, err := factory.New(ctx, backend, factory.Options{
		SQLitePath:   dbPath,
		DoltHost:     doltHost,
		DoltPort:     doltPort,
		DoltUser:     doltUser,
		DoltPassword: doltPassword,
		DoltDatabase: doltDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}

	bus := progress.New(store)

	var nc *nats.Conn
	if settings.NATSURL != "" {
		nc, err = nats.Connect(settings.NATSURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connect to NATS at %s: %w", settings.NATSURL, err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			store.Close()
			return nil, fmt.Errorf("open JetStream context: %w", err)
		}
		bus.SetJetStream(js)
	}

	jobCfg := jobs.DefaultConfig()
	jobCfg.MaxConcurrentJobs = settings.MaxConcurrentJobs
	jobCfg.MaxExtractionRetries = settings.MaxExtractionRetries
	jobCfg.SaveBatchSize = settings.SaveBatchSize
	jobCfg.BatchTimeout = settings.BatchTimeout
	jobCfg.JobCleanupAge = settings.JobCleanupAge
	jobCfg.DictionarySeedPath = seedPath
	jobCfg.ChunkerOptions = chunker.Options{
		TargetChunkSize:   settings.TargetChunkSize,
		Concurrency:       settings.ConcurrencyBase,
		ConcurrencyBoost:  settings.ConcurrencyBoost,
		Boost:             settings.BoostMode,
		ChunkTimeout:      settings.ChunkTimeout,
		JobTimeout:        settings.JobTimeout,
		MemorySoftLimitMB: settings.MemorySoftLimitMB,
	}

	jm := jobs.New(store, bus, jobCfg)

	return &app{store: store, bus: bus, jobs: jm, nats: nc, seedPath: seedPath}, nil
}

func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	_ = a.store.Close()
}
