package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	storageBackend string
	sqlitePath     string
	doltHost       string
	doltPort       int
	doltUser       string
	doltPassword   string
	doltDatabase   string
	configFile     string
	dictionarySeed string
	uploadDir      string
)

var rootCmd = &cobra.Command{
	Use:   "clinotectl",
	Short: "Clinical note analytics engine control CLI",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", "sqlite", "storage backend: sqlite or dolt")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "clinotect.db", "sqlite database file path")
	rootCmd.PersistentFlags().StringVar(&doltHost, "dolt-host", "127.0.0.1", "dolt sql-server host")
	rootCmd.PersistentFlags().IntVar(&doltPort, "dolt-port", 3307, "dolt sql-server port")
	rootCmd.PersistentFlags().StringVar(&doltUser, "dolt-user", "root", "dolt sql-server user")
	rootCmd.PersistentFlags().StringVar(&doltPassword, "dolt-password", "", "dolt sql-server password")
	rootCmd.PersistentFlags().StringVar(&doltDatabase, "dolt-database", "clinotect", "dolt database name")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML settings file")
	rootCmd.PersistentFlags().StringVar(&dictionarySeed, "dictionary-seed", "dictionary.csv", "seed CSV used when a tenant has no persisted dictionary")

	rootCmd.AddCommand(serveCmd, extractCmd, recoveryCmd, dictionaryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
