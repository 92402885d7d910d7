package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinotect/noteengine/internal/httpapi"
	"github.com/clinotect/noteengine/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server (uploads, jobs, progress, recovery)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		shutdownMetrics, err := metrics.Init(30 * time.Second)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer shutdownMetrics(context.Background())

		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := a.jobs.Cleanup(ctx); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "job cleanup: %v\n", err)
					}
				}
			}
		}()

		server := httpapi.New(a.jobs, a.bus, a.store, uploadDir)
		fmt.Fprintf(cmd.OutOrStdout(), "clinotectl serve listening on %s\n", serveAddr)
		if err := server.Start(ctx, serveAddr); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&uploadDir, "upload-dir", "uploads", "directory to spool incoming upload files")
}
