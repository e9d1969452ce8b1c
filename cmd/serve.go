package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evdealer/contractedit/internal/api"
	"github.com/evdealer/contractedit/internal/audit"
	"github.com/evdealer/contractedit/internal/config"
	"github.com/evdealer/contractedit/internal/db"
	"github.com/evdealer/contractedit/internal/editor"
	"github.com/evdealer/contractedit/internal/gateway"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the contract-template editing server",
	Long:  `Starts the editing API the admin dashboard talks to: session management, the editor WebSocket endpoint, and the save-audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		// Open database for the save-audit trail.
		dbPath := filepath.Join(cfg.DataDir, "contractedit.db")
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		gw := gateway.New(cfg.BackendURL)
		gw.SetSaveTimeout(time.Duration(cfg.SaveTimeoutSeconds) * time.Second)

		srv := api.New(api.Config{
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
		}, gw, audit.NewStore(database), editor.Options{
			PollInterval: time.Duration(cfg.Editor.PollIntervalMS) * time.Millisecond,
			PollAttempts: cfg.Editor.PollAttempts,
			Debounce:     time.Duration(cfg.Editor.DebounceMS) * time.Millisecond,
		})

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "contractedit v%s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Backend:  %s\n", cfg.BackendURL)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", dbPath)

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
