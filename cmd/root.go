package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "contractedit",
	Short: "Contract-template editing service for the dealership dashboard",
	Long: `Contractedit hosts the contract-template editing subsystem of the EV
dealership admin dashboard: it decomposes server-authored HTML contract
documents into editable zones, drives the embedded rich-text editor over
WebSocket, tracks unsaved changes, and recomposes complete documents for
the dealership backend.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".contractedit.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
