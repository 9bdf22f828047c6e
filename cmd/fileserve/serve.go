package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lynxoskar/fileServe200/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP server and the cleanup scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := app.Config{
			Port:        viper.GetInt("port"),
			Root:        viper.GetString("root"),
			JournalPath: viper.GetString("journal"),
			Retention:   retentionConfig(),
		}

		server, _, cleanup, err := app.NewServer(cfg)
		if err != nil {
			slog.Error("Failed to initialize server", "error", err)
			os.Exit(1)
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				slog.Error("Server failed", "error", err)
				cleanup()
				os.Exit(1)
			}
		case <-ctx.Done():
			slog.Info("Shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Graceful shutdown failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to run the server on")
	mustBindPFlag("port", serveCmd.Flags().Lookup("port"))
}
