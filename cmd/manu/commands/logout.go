package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jholhewres/manu/pkg/manu/channels/whatsapp"
	"github.com/spf13/cobra"
)

// newLogoutCmd creates the `manu logout` command that unlinks the device.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of WhatsApp and clear the session",
		Long: `Unlinks this device from your WhatsApp account and removes the
local session database. The next 'manu serve' will ask for a new
pairing code.

Examples:
  manu logout`,
		RunE: runLogout,
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Channels.WhatsApp.DatabasePath); err != nil {
		fmt.Println("Nenhuma sessão encontrada. Nada a fazer.")
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	wa := whatsapp.New(cfg.Channels.WhatsApp, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := wa.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to log out: %w", err)
	}
	if err := wa.Logout(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	_ = wa.Disconnect()

	fmt.Println("Sessão encerrada. O próximo 'manu serve' pedirá um novo código de pareamento.")
	return nil
}
