// Package whatsapp implements the WhatsApp channel for Manu using
// whatsmeow — a native Go WhatsApp Web API library. No Node.js.
//
// Features:
//   - Pairing-code login with persistent SQLite session
//   - Inbound message events with the full raw payload preserved
//   - Text replies with quoting
//   - Typing indicators
//   - Group subject lookup
//   - Automatic reconnection with backoff
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/jholhewres/manu/pkg/manu/channels"
	"github.com/jholhewres/manu/pkg/manu/pipeline"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for session store.
)

// Config holds WhatsApp channel configuration.
type Config struct {
	// DatabasePath is the SQLite database file for session storage.
	DatabasePath string `yaml:"database_path"`

	// PhoneNumber is the account's phone number in international format,
	// used for pairing-code login. When empty, the number is read
	// interactively on first login.
	PhoneNumber string `yaml:"phone_number"`

	// ReconnectBackoff is the initial backoff duration for reconnection.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// MaxReconnectAttempts caps reconnection tries (0 = unlimited).
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatabasePath:         "./sessions/manu.db",
		ReconnectBackoff:     5 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// WhatsApp implements channels.Channel and the pipeline's chat client
// surface.
type WhatsApp struct {
	cfg    Config
	client *whatsmeow.Client
	logger *slog.Logger

	// events is the channel for incoming events.
	events chan *channels.Event

	// connected tracks connection state.
	connected atomic.Bool

	// state tracks detailed connection state.
	state atomic.Value // ConnectionState

	// reconnectAttempts tracks reconnection tries.
	reconnectAttempts atomic.Int32

	// reconnectGuard prevents concurrent reconnection attempts.
	reconnectGuard atomic.Bool

	// eventsClosed tracks if the events channel has been closed, to avoid
	// sending on a closed channel.
	eventsClosed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new WhatsApp channel instance.
func New(cfg Config, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = 5 * time.Second
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultConfig().DatabasePath
	}

	w := &WhatsApp{
		cfg:    cfg,
		logger: logger.With("component", "whatsapp"),
		events: make(chan *channels.Event, 256),
	}
	w.setState(StateDisconnected)
	return w
}

// ---------- State Management ----------

func (w *WhatsApp) getState() ConnectionState {
	if v := w.state.Load(); v != nil {
		return v.(ConnectionState)
	}
	return StateDisconnected
}

func (w *WhatsApp) setState(state ConnectionState) {
	w.state.Store(state)
}

// GetState returns the current connection state.
func (w *WhatsApp) GetState() ConnectionState {
	return w.getState()
}

// getClientJID returns the current client JID if a session exists.
func (w *WhatsApp) getClientJID() string {
	if w.client != nil && w.client.Store.ID != nil {
		return w.client.Store.ID.String()
	}
	return ""
}

// ---------- Channel Interface ----------

// Name returns "whatsapp".
func (w *WhatsApp) Name() string { return "whatsapp" }

// Connect establishes the WhatsApp Web connection via whatsmeow. If no
// existing session is found, the pairing-code login flow runs first: the
// phone number is taken from config or prompted for, and WhatsApp displays
// a code to type into the phone's linked-devices screen.
func (w *WhatsApp) Connect(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.setState(StateConnecting)
	w.logger.Info("whatsapp: initializing connection...")

	container, err := sqlstore.New(w.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", w.cfg.DatabasePath),
		waLog.Noop)
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("creating session store: %w", err)
	}

	device, err := w.getDevice(w.ctx, container)
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("getting device: %w", err)
	}

	// Device name shown in the WhatsApp linked devices list.
	store.SetOSInfo("Manu", [3]uint32{1, 0, 0})

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(w.handleEvent)

	// whatsmeow's built-in auto-reconnect handles network hiccups and
	// server-initiated disconnects.
	w.client.EnableAutoReconnect = true
	w.client.InitialAutoReconnect = true

	if w.client.Store.ID == nil {
		// First login: pairing-code flow.
		return w.loginWithPairingCode(w.ctx)
	}

	// Existing session — reconnect.
	if err := w.client.Connect(); err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("connecting: %w", err)
	}

	w.connected.Store(true)
	w.logger.Info("whatsapp: connected (existing session)",
		"jid", w.getClientJID())
	return nil
}

// loginWithPairingCode runs the first-login flow: connect without a
// session, request a pairing code for the configured phone number, and
// wait for the phone to confirm.
func (w *WhatsApp) loginWithPairingCode(ctx context.Context) error {
	w.setState(StatePairing)

	phone := strings.TrimSpace(w.cfg.PhoneNumber)
	if phone == "" {
		var err error
		phone, err = promptPhoneNumber()
		if err != nil {
			w.setState(StateDisconnected)
			return fmt.Errorf("reading phone number: %w", err)
		}
	}
	phone = digitsOnly(phone)
	if len(phone) < 10 {
		w.setState(StateDisconnected)
		return fmt.Errorf("phone number too short: %q", phone)
	}

	if err := w.client.Connect(); err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("connecting for pairing: %w", err)
	}

	code, err := w.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("requesting pairing code: %w", err)
	}

	w.logger.Info("whatsapp: pairing code generated, enter it on your phone",
		"code", code)
	fmt.Printf("\nCódigo de pareamento: %s\n", code)
	fmt.Println("No celular: Aparelhos conectados > Conectar um aparelho > Conectar com número de telefone")

	// The Connected event flips the state once the phone confirms.
	return nil
}

// promptPhoneNumber reads the phone number interactively.
func promptPhoneNumber() (string, error) {
	rl, err := readline.New("Número de telefone (ex: 5511999999999): ")
	if err != nil {
		return "", err
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// digitsOnly strips everything but ASCII digits.
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Disconnect gracefully closes the WhatsApp connection.
func (w *WhatsApp) Disconnect() error {
	w.setState(StateDisconnected)
	w.connected.Store(false)

	if w.cancel != nil {
		w.cancel()
	}
	if w.client != nil {
		w.client.Disconnect()
	}

	if w.eventsClosed.CompareAndSwap(false, true) {
		close(w.events)
	}

	w.logger.Info("whatsapp: disconnected")
	return nil
}

// Logout logs out and clears the session.
func (w *WhatsApp) Logout() error {
	if w.client == nil {
		return nil
	}

	w.setState(StateLoggingOut)
	w.connected.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.client.Logout(ctx); err != nil {
		w.logger.Warn("whatsapp: logout error, forcing cleanup", "error", err)
		w.client.Disconnect()
		if w.client.Store != nil {
			if delErr := w.client.Store.Delete(ctx); delErr != nil {
				w.logger.Warn("whatsapp: failed to delete store", "error", delErr)
			}
		}
	}

	w.setState(StateDisconnected)
	w.logger.Info("whatsapp: logged out, session cleared")
	return nil
}

// attemptReconnect tries to reconnect with linear backoff. A guard
// prevents concurrent attempts; the loop runs until reconnection succeeds,
// max attempts are reached, or the context ends.
func (w *WhatsApp) attemptReconnect() {
	if !w.reconnectGuard.CompareAndSwap(false, true) {
		w.logger.Debug("whatsapp: reconnect already in progress, skipping")
		return
	}
	defer w.reconnectGuard.Store(false)

	w.setState(StateReconnecting)

	for {
		if w.ctx.Err() != nil {
			w.logger.Debug("whatsapp: reconnect cancelled, context done")
			return
		}

		attempts := w.reconnectAttempts.Add(1)
		if w.cfg.MaxReconnectAttempts > 0 && attempts > int32(w.cfg.MaxReconnectAttempts) {
			w.logger.Error("whatsapp: max reconnect attempts reached",
				"attempts", attempts)
			w.setState(StateDisconnected)
			return
		}

		backoff := min(w.cfg.ReconnectBackoff*time.Duration(attempts), 5*time.Minute)

		w.logger.Info("whatsapp: attempting reconnect",
			"attempt", attempts,
			"backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-w.ctx.Done():
			w.logger.Debug("whatsapp: reconnect cancelled during backoff")
			return
		}

		if w.client == nil {
			w.logger.Warn("whatsapp: client is nil, cannot reconnect")
			return
		}

		// Disconnect first to clear any stale websocket state.
		if w.client.IsConnected() {
			w.client.Disconnect()
			time.Sleep(100 * time.Millisecond)
		}

		if err := w.client.Connect(); err != nil {
			w.logger.Warn("whatsapp: reconnect attempt failed, will retry",
				"attempt", attempts,
				"error", err)
			continue
		}

		// The Connected event confirms and resets the attempt counter.
		w.logger.Info("whatsapp: reconnect connection initiated, waiting for confirmation")
		return
	}
}

// Receive returns the incoming events channel.
func (w *WhatsApp) Receive() <-chan *channels.Event {
	return w.events
}

// IsConnected reports whether WhatsApp is connected.
func (w *WhatsApp) IsConnected() bool {
	return w.connected.Load()
}

// ---------- Chat Client Surface ----------

// SendPresenceUpdate emits a chat presence signal. Only "composing" maps to
// an active typing indicator; any other kind pauses it.
func (w *WhatsApp) SendPresenceUpdate(ctx context.Context, kind, chatID string) error {
	if !w.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	jid, err := parseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", chatID, err)
	}

	presence := types.ChatPresencePaused
	if kind == pipeline.PresenceComposing {
		presence = types.ChatPresenceComposing
	}
	return w.client.SendChatPresence(ctx, jid, presence, types.ChatPresenceMediaText)
}

// SendText sends a text message to a chat. When quoted is non-nil the
// outgoing message carries reply context pointing at that event.
func (w *WhatsApp) SendText(ctx context.Context, chatID, text string, quoted *channels.Event) error {
	if !w.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	jid, err := parseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", chatID, err)
	}

	msg := buildTextMessage(text, quoted)
	if _, err := w.client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// GroupSubject resolves a group chat's subject line.
func (w *WhatsApp) GroupSubject(ctx context.Context, chatID string) (string, error) {
	if !w.connected.Load() {
		return "", channels.ErrChannelDisconnected
	}
	jid, err := parseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("invalid JID %q: %w", chatID, err)
	}

	info, err := w.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return "", fmt.Errorf("fetching group info: %w", err)
	}
	return info.Name, nil
}

// buildTextMessage builds the outgoing wire message. Plain text goes out as
// a conversation; replies use the extended-text form with quote context.
func buildTextMessage(text string, quoted *channels.Event) *waE2E.Message {
	if quoted == nil {
		return &waE2E.Message{Conversation: proto.String(text)}
	}

	quotedText := ""
	if quoted.Message != nil {
		quotedText = pipeline.ExtractText(quoted.Message)
	}

	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:    proto.String(quoted.Key.ID),
				Participant: proto.String(quoted.Key.Sender()),
				QuotedMessage: &waE2E.Message{
					Conversation: proto.String(quotedText),
				},
			},
		},
	}
}

// ---------- Helpers ----------

// getDevice returns the stored device, or a fresh one for first login.
func (w *WhatsApp) getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

// parseJID parses a chat identifier: full JIDs pass through, bare phone
// numbers get the default user server.
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}

	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}

	digits := digitsOnly(s)
	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
