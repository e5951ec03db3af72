package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saisandeepramavath/LaneChangeDecision/internal/control"
)

var emitterCmd = &cobra.Command{
	Use:   "emitter",
	Short: "Run the lane change decision module and heartbeat emitter",
	Run:   runEmitter,
}

func init() {
	rootCmd.AddCommand(emitterCmd)
}

func runEmitter(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app := control.NewEmitterApp(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start emitter", "error", err)
		os.Exit(1)
	}

	slog.Info("Emitter started",
		"target", cfg.Emitter.Target,
		"interval", cfg.Emitter.ReportingInterval())

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Emitter stopped gracefully")
}
