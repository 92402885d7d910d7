package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinotect/noteengine/internal/dictionary"
)

var dictionaryTenant string

var dictionaryCmd = &cobra.Command{
	Use:   "dictionary",
	Short: "Symptom dictionary operations",
}

var dictionaryLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load (or seed) a tenant's dictionary and report its reconciled size",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := dictionary.Load(ctx, a.store, dictionaryTenant, a.seedPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d dictionary entries for tenant %s\n", len(entries), dictionaryTenant)
		return nil
	},
}

func init() {
	dictionaryCmd.PersistentFlags().StringVar(&dictionaryTenant, "tenant", "", "tenant to operate on")
	_ = dictionaryCmd.MarkPersistentFlagRequired("tenant")
	dictionaryCmd.AddCommand(dictionaryLoadCmd)
}
