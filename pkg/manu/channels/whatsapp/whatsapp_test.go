package whatsapp

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"github.com/jholhewres/manu/pkg/manu/channels"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("creates instance with defaults", func(t *testing.T) {
		w := New(DefaultConfig(), logger)

		if w == nil {
			t.Fatal("expected non-nil WhatsApp instance")
		}
		if w.Name() != "whatsapp" {
			t.Errorf("expected name 'whatsapp', got %s", w.Name())
		}
		if w.getState() != StateDisconnected {
			t.Errorf("expected initial state 'disconnected', got %s", w.getState())
		}
	})

	t.Run("uses default logger if nil", func(t *testing.T) {
		w := New(DefaultConfig(), nil)
		if w.logger == nil {
			t.Error("expected logger to be set")
		}
	})

	t.Run("applies defaults to zero config", func(t *testing.T) {
		w := New(Config{}, logger)

		if w.cfg.ReconnectBackoff != 5*time.Second {
			t.Errorf("expected default backoff 5s, got %v", w.cfg.ReconnectBackoff)
		}
		if w.cfg.DatabasePath == "" {
			t.Error("expected a default database path")
		}
	})
}

func TestStateManagement(t *testing.T) {
	w := New(DefaultConfig(), nil)

	t.Run("setState updates state", func(t *testing.T) {
		w.setState(StateConnecting)
		if w.getState() != StateConnecting {
			t.Errorf("expected 'connecting', got %s", w.getState())
		}

		w.setState(StateConnected)
		if w.GetState() != StateConnected {
			t.Errorf("expected 'connected', got %s", w.GetState())
		}
	})
}

func TestSendWhenDisconnected(t *testing.T) {
	w := New(DefaultConfig(), nil)
	ctx := context.Background()

	t.Run("send text fails", func(t *testing.T) {
		err := w.SendText(ctx, "5511999999999", "test", nil)
		if err != channels.ErrChannelDisconnected {
			t.Errorf("expected ErrChannelDisconnected, got %v", err)
		}
	})

	t.Run("presence update fails", func(t *testing.T) {
		err := w.SendPresenceUpdate(ctx, "composing", "5511999999999")
		if err != channels.ErrChannelDisconnected {
			t.Errorf("expected ErrChannelDisconnected, got %v", err)
		}
	})

	t.Run("group subject fails", func(t *testing.T) {
		_, err := w.GroupSubject(ctx, "1203630@g.us")
		if err != channels.ErrChannelDisconnected {
			t.Errorf("expected ErrChannelDisconnected, got %v", err)
		}
	})
}

func TestDisconnect(t *testing.T) {
	w := New(DefaultConfig(), nil)
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.connected.Store(true)
	w.setState(StateConnected)

	if err := w.Disconnect(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if w.getState() != StateDisconnected {
		t.Errorf("expected state 'disconnected', got %s", w.getState())
	}
	if w.IsConnected() {
		t.Error("expected connected=false after disconnect")
	}

	// Second disconnect must not panic on the closed events channel.
	if err := w.Disconnect(); err != nil {
		t.Errorf("unexpected error on second disconnect: %v", err)
	}
}

func TestParseJID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"full user JID", "5511999999999@s.whatsapp.net", "5511999999999@s.whatsapp.net", false},
		{"group JID", "1203630@g.us", "1203630@g.us", false},
		{"bare phone number", "5511999999999", "5511999999999@s.whatsapp.net", false},
		{"formatted phone number", "+55 (11) 99999-9999", "5511999999999@s.whatsapp.net", false},
		{"empty", "", "", true},
		{"too short", "123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jid, err := parseJID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseJID(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseJID(%q): %v", tt.input, err)
			}
			if jid.String() != tt.want {
				t.Errorf("parseJID(%q) = %s, want %s", tt.input, jid.String(), tt.want)
			}
		})
	}
}

func TestBuildTextMessage(t *testing.T) {
	t.Run("plain text without quote", func(t *testing.T) {
		msg := buildTextMessage("hello", nil)
		if msg.GetConversation() != "hello" {
			t.Errorf("conversation = %q, want hello", msg.GetConversation())
		}
		if msg.ExtendedTextMessage != nil {
			t.Error("plain message should not be extended text")
		}
	})

	t.Run("reply carries quote context", func(t *testing.T) {
		quoted := &channels.Event{
			Key: channels.Key{
				RemoteJID: "5511999999999@s.whatsapp.net",
				ID:        "MSG1",
			},
			Message: &channels.Envelope{Conversation: "original text"},
		}
		msg := buildTextMessage("reply", quoted)

		ext := msg.ExtendedTextMessage
		if ext == nil {
			t.Fatal("expected an extended text message")
		}
		if ext.GetText() != "reply" {
			t.Errorf("text = %q, want reply", ext.GetText())
		}
		ci := ext.GetContextInfo()
		if ci.GetStanzaID() != "MSG1" {
			t.Errorf("stanza id = %q, want MSG1", ci.GetStanzaID())
		}
		if ci.GetParticipant() != "5511999999999@s.whatsapp.net" {
			t.Errorf("participant = %q", ci.GetParticipant())
		}
		if ci.GetQuotedMessage().GetConversation() != "original text" {
			t.Errorf("quoted body = %q", ci.GetQuotedMessage().GetConversation())
		}
	})
}

func TestConvertEnvelope(t *testing.T) {
	t.Run("conversation", func(t *testing.T) {
		env := convertEnvelope(&waE2E.Message{Conversation: proto.String("oi")})
		if env == nil || env.Conversation != "oi" {
			t.Fatalf("env = %+v, want conversation oi", env)
		}
	})

	t.Run("extended text with quote", func(t *testing.T) {
		env := convertEnvelope(&waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String("what is this?"),
				ContextInfo: &waE2E.ContextInfo{
					StanzaID: proto.String("ABC"),
					QuotedMessage: &waE2E.Message{
						ImageMessage: &waE2E.ImageMessage{
							Caption:  proto.String("a cat"),
							Mimetype: proto.String("image/jpeg"),
						},
					},
				},
			},
		})
		if env == nil || env.ExtendedTextMessage == nil {
			t.Fatal("expected an extended text envelope")
		}
		if env.ExtendedTextMessage.Text != "what is this?" {
			t.Errorf("text = %q", env.ExtendedTextMessage.Text)
		}
		ci := env.ExtendedTextMessage.ContextInfo
		if ci == nil || ci.StanzaID != "ABC" {
			t.Fatalf("contextInfo = %+v", ci)
		}
		if ci.QuotedMessage == nil || ci.QuotedMessage.ImageMessage == nil {
			t.Fatalf("quoted = %+v", ci.QuotedMessage)
		}
		if ci.QuotedMessage.ImageMessage.Caption != "a cat" {
			t.Errorf("quoted caption = %q", ci.QuotedMessage.ImageMessage.Caption)
		}
	})

	t.Run("view once image", func(t *testing.T) {
		env := convertEnvelope(&waE2E.Message{
			ViewOnceMessage: &waE2E.FutureProofMessage{
				Message: &waE2E.Message{
					ImageMessage: &waE2E.ImageMessage{Caption: proto.String("secret")},
				},
			},
		})
		if env == nil || env.ViewOnceMessage == nil || env.ViewOnceMessage.Message == nil {
			t.Fatalf("env = %+v", env)
		}
		if env.ViewOnceMessage.Message.ImageMessage.Caption != "secret" {
			t.Errorf("nested caption = %q", env.ViewOnceMessage.Message.ImageMessage.Caption)
		}
	})

	t.Run("edited message", func(t *testing.T) {
		env := convertEnvelope(&waE2E.Message{
			EditedMessage: &waE2E.FutureProofMessage{
				Message: &waE2E.Message{
					ProtocolMessage: &waE2E.ProtocolMessage{
						EditedMessage: &waE2E.Message{Conversation: proto.String("fixed")},
					},
				},
			},
		})
		if env == nil || env.EditedMessage == nil {
			t.Fatalf("env = %+v", env)
		}
		inner := env.EditedMessage.Message
		if inner == nil || inner.ProtocolMessage == nil || inner.ProtocolMessage.EditedMessage == nil {
			t.Fatalf("edited wrapper = %+v", inner)
		}
		if inner.ProtocolMessage.EditedMessage.Conversation != "fixed" {
			t.Errorf("edited body = %q", inner.ProtocolMessage.EditedMessage.Conversation)
		}
	})

	t.Run("protocol noise yields nil", func(t *testing.T) {
		if env := convertEnvelope(&waE2E.Message{}); env != nil {
			t.Errorf("empty wire message should convert to nil, got %+v", env)
		}
		if env := convertEnvelope(nil); env != nil {
			t.Errorf("nil wire message should convert to nil, got %+v", env)
		}
	})

	t.Run("document with caption", func(t *testing.T) {
		env := convertEnvelope(&waE2E.Message{
			DocumentWithCaptionMessage: &waE2E.FutureProofMessage{
				Message: &waE2E.Message{
					DocumentMessage: &waE2E.DocumentMessage{
						Caption:  proto.String("report"),
						FileName: proto.String("q3.pdf"),
					},
				},
			},
		})
		if env == nil || env.DocumentWithCaptionMessage == nil {
			t.Fatalf("env = %+v", env)
		}
		doc := env.DocumentWithCaptionMessage.Message.DocumentMessage
		if doc == nil || doc.Caption != "report" || doc.FileName != "q3.pdf" {
			t.Errorf("doc = %+v", doc)
		}
	})
}

func TestDigitsOnly(t *testing.T) {
	if got := digitsOnly("+55 (11) 99999-9999"); got != "5511999999999" {
		t.Errorf("digitsOnly = %q", got)
	}
}
