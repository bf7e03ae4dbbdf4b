package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jholhewres/manu/pkg/manu/bot"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `manu serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant daemon",
		Long: `Start Manu as a daemon, connecting to WhatsApp and processing
messages until interrupted. On first run the pairing-code login flow
asks for your phone number and prints a code to type into WhatsApp.

Examples:
  manu serve
  manu serve --config ./config.yaml
  manu serve --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	// ── Resolve secrets ──
	// Keyring → env/config → interactive prompt.
	if err := bot.ResolveAPIKey(cfg, logger); err != nil {
		return err
	}

	// ── Assemble and start ──
	b, err := bot.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Start(ctx)
	}()

	// ── Wait for shutdown ──
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received, stopping...", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	cancel()

	// Graceful shutdown with timeout.
	done := make(chan struct{})
	go func() {
		if err := b.Stop(); err != nil {
			logger.Warn("error during shutdown", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// resolveConfig loads the config from the --config flag or from standard
// locations, pointing the user at `manu setup` when nothing is found.
func resolveConfig(cmd *cobra.Command) (*bot.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	// Try explicit path first.
	if configPath != "" {
		cfg, err := bot.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	// Auto-discover config file.
	if found := bot.FindConfigFile(); found != "" {
		cfg, err := bot.LoadConfigFromFile(found)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", found, err)
		}
		slog.Info("config loaded", "path", found)
		return cfg, nil
	}

	return nil, fmt.Errorf("no configuration file found, run 'manu setup' to create one")
}
