package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/manu/pkg/manu/channels"
)

// Persona is the fixed system instruction sent with every assistant call.
const Persona = "You are a helpful feminine assistant called Manu."

// PresenceComposing is the typing-indicator presence kind.
const PresenceComposing = "composing"

// composingRepeat is how many composing updates precede a dispatch. The
// repetition is a crude typing-delay simulation inherited from the previous
// build; no timing semantics beyond the count.
const composingRepeat = 5

// ChatClient is the transport surface the coordinator drives. Implemented by
// the WhatsApp channel; mocked in tests.
type ChatClient interface {
	// SendPresenceUpdate emits a presence signal (e.g. "composing") to a chat.
	SendPresenceUpdate(ctx context.Context, kind, chatID string) error

	// SendText sends a text message to a chat, quoting the given event.
	SendText(ctx context.Context, chatID, text string, quoted *channels.Event) error

	// GroupSubject resolves a group chat's subject line.
	GroupSubject(ctx context.Context, chatID string) (string, error)
}

// Assistant is the generative backend. The coordinator always supplies the
// fixed persona instruction and a fixed model for text dispatch.
type Assistant interface {
	Respond(ctx context.Context, prompt, model, systemInstruction string) (string, error)
}

// Config holds the coordinator's fixed parameters.
type Config struct {
	// Owner is the authorized sender's numeric chat identifier.
	Owner string

	// Prefix is the command prefix (defaults to ".").
	Prefix string

	// Model is the assistant model used for text dispatch.
	Model string
}

// Coordinator orchestrates the pipeline for each inbound event: extraction
// and classification always run, logging always runs, and dispatch to the
// assistant happens only for authorized events. One event per Handle call;
// no state is shared across events.
type Coordinator struct {
	cfg          Config
	client       ChatClient
	assistant    Assistant
	gate         Gate
	interactions *InteractionLogger
	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger
}

// NewCoordinator wires the pipeline. out receives the operator-facing
// interaction records.
func NewCoordinator(cfg Config, client ChatClient, assistant Assistant, out io.Writer, logger *slog.Logger) (*Coordinator, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner identifier is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", Timezone, err)
	}

	return &Coordinator{
		cfg:          cfg,
		client:       client,
		assistant:    assistant,
		gate:         Gate{Owner: cfg.Owner},
		interactions: NewInteractionLogger(out, logger),
		loc:          loc,
		now:          time.Now,
		logger:       logger.With("component", "dispatch"),
	}, nil
}

// SetClock overrides the wall-clock source. Test hook.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Handle processes one inbound event end to end. Assistant or transport
// failures are not retried here; they propagate to the caller, which owns
// top-level error reporting.
func (c *Coordinator) Handle(ctx context.Context, evt *channels.Event) error {
	if evt == nil || evt.Message == nil {
		return nil
	}
	// Status updates never enter the pipeline.
	if evt.Key.IsStatusBroadcast() {
		return nil
	}

	text := ExtractText(evt.Message)
	cls := Classify(evt.Message, text)
	cmd := ParseCommand(text, c.cfg.Prefix)
	verdict := c.gate.Authorize(evt, text)

	groupName := ""
	if evt.Key.IsGroup() {
		subject, err := c.client.GroupSubject(ctx, evt.Key.RemoteJID)
		if err != nil {
			c.logger.Debug("group subject lookup failed",
				"chat", evt.Key.RemoteJID, "error", err)
		} else {
			groupName = subject
		}
	}

	// Logging happens for every event, independent of the verdict.
	c.interactions.Log(evt, cmd, groupName, c.now().In(c.loc))

	dispatchID := uuid.NewString()
	c.logger.Debug("event processed",
		"dispatch_id", dispatchID,
		"type", cls.Primary,
		"quoted", cls.IsQuoted,
		"command", cmd.Token,
		"verdict", verdict.Reason)

	if !verdict.OK {
		return nil
	}

	chatID := evt.Key.RemoteJID
	for i := 0; i < composingRepeat; i++ {
		if err := c.client.SendPresenceUpdate(ctx, PresenceComposing, chatID); err != nil {
			return fmt.Errorf("sending presence update: %w", err)
		}
	}

	dctx := BuildContext(c.now(), c.loc, evt.PushName)
	prompt := text + "\n\n" + dctx.Instruction()

	reply, err := c.assistant.Respond(ctx, prompt, c.cfg.Model, Persona)
	if err != nil {
		return fmt.Errorf("assistant dispatch %s: %w", dispatchID, err)
	}

	if err := c.client.SendText(ctx, chatID, reply, evt); err != nil {
		return fmt.Errorf("relaying reply %s: %w", dispatchID, err)
	}

	c.logger.Info("reply relayed",
		"dispatch_id", dispatchID,
		"chat", chatID,
		"chars", len(reply))
	return nil
}
