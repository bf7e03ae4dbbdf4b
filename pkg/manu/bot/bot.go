package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jholhewres/manu/pkg/manu/channels/whatsapp"
	"github.com/jholhewres/manu/pkg/manu/gemini"
	"github.com/jholhewres/manu/pkg/manu/pipeline"
)

// Bot is the assembled assistant: the WhatsApp channel feeding the message
// pipeline, which dispatches to the Gemini backend.
type Bot struct {
	cfg         *Config
	channel     *whatsapp.WhatsApp
	coordinator *pipeline.Coordinator
	logger      *slog.Logger
}

// New assembles a Bot from config. The config must already have its API
// key resolved (see ResolveAPIKey).
func New(cfg *Config, logger *slog.Logger) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	channel := whatsapp.New(cfg.Channels.WhatsApp, logger)
	assistant := gemini.New(gemini.Config{
		APIKey:  cfg.API.APIKey,
		BaseURL: cfg.API.BaseURL,
	}, logger)

	coordinator, err := pipeline.NewCoordinator(pipeline.Config{
		Owner:  cfg.OwnerNumber,
		Prefix: cfg.Prefix,
		Model:  cfg.Model,
	}, channel, assistant, os.Stdout, logger)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	return &Bot{
		cfg:         cfg,
		channel:     channel,
		coordinator: coordinator,
		logger:      logger.With("component", "bot"),
	}, nil
}

// Start connects the channel and runs the event loop until the context
// ends or the channel closes. Per-event failures are logged, never fatal.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.channel.Connect(ctx); err != nil {
		return fmt.Errorf("connecting whatsapp: %w", err)
	}

	b.logger.Info("bot started",
		"name", b.cfg.Name,
		"model", b.cfg.Model,
		"prefix", b.cfg.Prefix)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-b.channel.Receive():
			if !ok {
				b.logger.Info("event channel closed, stopping")
				return nil
			}
			if err := b.coordinator.Handle(ctx, evt); err != nil {
				b.logger.Error("failed to handle event",
					"chat", evt.Key.RemoteJID,
					"error", err)
			}
		}
	}
}

// Stop disconnects the channel.
func (b *Bot) Stop() error {
	b.logger.Info("stopping bot")
	return b.channel.Disconnect()
}
