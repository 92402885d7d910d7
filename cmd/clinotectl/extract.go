package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinotect/noteengine/internal/jobs"
)

var (
	extractTenant    string
	extractBatchSize int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Manually enqueue an extraction job for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		jobID, err := a.jobs.EnqueueExtraction(ctx, jobs.ExtractionRequest{
			TenantID: extractTenant, BatchSize: extractBatchSize,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued extraction job %s for tenant %s\n", jobID, extractTenant)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractTenant, "tenant", "", "tenant to extract")
	extractCmd.Flags().IntVar(&extractBatchSize, "batch-size", 0, "notes per save batch (0 = configured default)")
	_ = extractCmd.MarkFlagRequired("tenant")
}
