package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinotect/noteengine/internal/recovery"
	"github.com/clinotect/noteengine/internal/types"
)

var recoveryTenant string

var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Tenant-scoped recovery operations",
}

var recoveryClearMentionsCmd = &cobra.Command{
	Use:   "clear-mentions",
	Short: "Delete all mentions for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := recovery.ClearMentions(ctx, a.store, recoveryTenant); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared mentions for tenant %s\n", recoveryTenant)
		return nil
	},
}

var recoveryResetStatusCmd = &cobra.Command{
	Use:   "reset-status",
	Short: "Reset a tenant's process status to ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := recovery.ResetStatus(ctx, a.store, recoveryTenant, types.ProcessExtraction); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset status for tenant %s\n", recoveryTenant)
		return nil
	},
}

var recoveryPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all rows for a tenant across every entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := recovery.PurgeTenant(ctx, a.store, recoveryTenant); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged tenant %s\n", recoveryTenant)
		return nil
	},
}

func init() {
	recoveryCmd.PersistentFlags().StringVar(&recoveryTenant, "tenant", "", "tenant to operate on")
	_ = recoveryCmd.MarkPersistentFlagRequired("tenant")
	recoveryCmd.AddCommand(recoveryClearMentionsCmd, recoveryResetStatusCmd, recoveryPurgeCmd)
}
