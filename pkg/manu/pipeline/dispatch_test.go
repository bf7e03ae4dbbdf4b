package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/manu/pkg/manu/channels"
)

type fakeClient struct {
	presenceKinds []string
	presenceChats []string
	sentChat      string
	sentText      string
	sentQuoted    *channels.Event
	subject       string
	subjectErr    error
	sendErr       error
}

func (f *fakeClient) SendPresenceUpdate(_ context.Context, kind, chatID string) error {
	f.presenceKinds = append(f.presenceKinds, kind)
	f.presenceChats = append(f.presenceChats, chatID)
	return nil
}

func (f *fakeClient) SendText(_ context.Context, chatID, text string, quoted *channels.Event) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentChat = chatID
	f.sentText = text
	f.sentQuoted = quoted
	return nil
}

func (f *fakeClient) GroupSubject(_ context.Context, _ string) (string, error) {
	return f.subject, f.subjectErr
}

type fakeAssistant struct {
	prompt string
	model  string
	system string
	reply  string
	err    error
	calls  int
}

func (f *fakeAssistant) Respond(_ context.Context, prompt, model, systemInstruction string) (string, error) {
	f.calls++
	f.prompt = prompt
	f.model = model
	f.system = systemInstruction
	return f.reply, f.err
}

const testOwner = "5511999999999"

func newTestCoordinator(t *testing.T, client *fakeClient, assistant *fakeAssistant, out *bytes.Buffer) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Config{
		Owner: testOwner,
		Model: "gemini-2.5-flash",
	}, client, assistant, out, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	c.SetClock(func() time.Time {
		return time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC)
	})
	return c
}

func ownerEvent(text string) *channels.Event {
	return &channels.Event{
		Key: channels.Key{
			RemoteJID: testOwner + "@s.whatsapp.net",
			ID:        "MSG1",
		},
		PushName: "Ana",
		Message:  &channels.Envelope{Conversation: text},
	}
}

func TestCoordinatorHandle(t *testing.T) {
	t.Run("owner message dispatches", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{reply: "oi Ana!"}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := ownerEvent("Hello")
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}

		if len(client.presenceKinds) != 5 {
			t.Errorf("presence updates = %d, want 5", len(client.presenceKinds))
		}
		for _, kind := range client.presenceKinds {
			if kind != PresenceComposing {
				t.Errorf("presence kind = %s, want composing", kind)
			}
		}

		if assistant.calls != 1 {
			t.Fatalf("assistant calls = %d, want 1", assistant.calls)
		}
		if !strings.HasPrefix(assistant.prompt, "Hello\n\n") {
			t.Errorf("prompt should start with the message text:\n%s", assistant.prompt)
		}
		if !strings.Contains(assistant.prompt, "SensitiveLogsUser") {
			t.Errorf("prompt missing the context block:\n%s", assistant.prompt)
		}
		if !strings.Contains(assistant.prompt, "userName: Ana") {
			t.Errorf("prompt missing the display name:\n%s", assistant.prompt)
		}
		if assistant.model != "gemini-2.5-flash" {
			t.Errorf("model = %s", assistant.model)
		}
		if assistant.system != Persona {
			t.Errorf("system instruction = %q, want the persona", assistant.system)
		}

		if client.sentText != "oi Ana!" {
			t.Errorf("sent text = %q, want the assistant reply", client.sentText)
		}
		if client.sentChat != evt.Key.RemoteJID {
			t.Errorf("sent chat = %s, want %s", client.sentChat, evt.Key.RemoteJID)
		}
		if client.sentQuoted != evt {
			t.Error("reply should quote the inbound event")
		}

		record := buf.String()
		if !strings.Contains(record, "Mensagem no Privado\n") {
			t.Errorf("expected a private record:\n%s", record)
		}
		if strings.Contains(record, "comando:") {
			t.Errorf("plain message should not log a comando line:\n%s", record)
		}
	})

	t.Run("command token logged", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{reply: "pong"}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		if err := c.Handle(context.Background(), ownerEvent(".Ping now")); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if !strings.Contains(buf.String(), "comando: ping\n") {
			t.Errorf("expected normalized comando line:\n%s", buf.String())
		}
	})

	t.Run("group message logged but not dispatched", func(t *testing.T) {
		client := &fakeClient{subject: "Família"}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := &channels.Event{
			Key: channels.Key{
				RemoteJID:   "1203630@g.us",
				Participant: testOwner + "@s.whatsapp.net",
			},
			PushName: "Ana",
			Message:  &channels.Envelope{Conversation: "hello group"},
		}
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}

		if assistant.calls != 0 {
			t.Error("group message must not reach the assistant")
		}
		if len(client.presenceKinds) != 0 {
			t.Error("group message must not trigger presence updates")
		}
		record := buf.String()
		if !strings.Contains(record, "grupo: Família\n") {
			t.Errorf("expected the resolved group subject:\n%s", record)
		}
	})

	t.Run("group subject failure still logs", func(t *testing.T) {
		client := &fakeClient{subjectErr: fmt.Errorf("not a participant")}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := &channels.Event{
			Key:     channels.Key{RemoteJID: "1203630@g.us"},
			Message: &channels.Envelope{Conversation: "hi"},
		}
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if !strings.Contains(buf.String(), "grupo: \n") {
			t.Errorf("expected an empty grupo line:\n%s", buf.String())
		}
	})

	t.Run("non-owner logged but not dispatched", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := &channels.Event{
			Key:      channels.Key{RemoteJID: "5511888888888@s.whatsapp.net"},
			PushName: "Beto",
			Message:  &channels.Envelope{Conversation: "hi"},
		}
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if assistant.calls != 0 {
			t.Error("non-owner message must not reach the assistant")
		}
		if !strings.Contains(buf.String(), "número: 5511888888888\n") {
			t.Errorf("non-owner interaction should still be recorded:\n%s", buf.String())
		}
	})

	t.Run("self-sent not dispatched", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := ownerEvent("note to self")
		evt.Key.FromMe = true
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if assistant.calls != 0 {
			t.Error("self-sent message must not reach the assistant")
		}
	})

	t.Run("textless media not dispatched", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := ownerEvent("")
		evt.Message = &channels.Envelope{StickerMessage: &channels.StickerMessage{}}
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if assistant.calls != 0 {
			t.Error("textless message must not reach the assistant")
		}
		if buf.Len() == 0 {
			t.Error("textless message should still be recorded")
		}
	})

	t.Run("status broadcast dropped entirely", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := &channels.Event{
			Key:     channels.Key{RemoteJID: channels.StatusBroadcastJID},
			Message: &channels.Envelope{Conversation: "status"},
		}
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("status broadcast must not be recorded:\n%s", buf.String())
		}
		if assistant.calls != 0 {
			t.Error("status broadcast must not reach the assistant")
		}
	})

	t.Run("nil payload dropped", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		evt := ownerEvent("x")
		evt.Message = nil
		if err := c.Handle(context.Background(), evt); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if buf.Len() != 0 || assistant.calls != 0 {
			t.Error("event without a payload must be dropped before logging")
		}
	})

	t.Run("assistant failure propagates", func(t *testing.T) {
		client := &fakeClient{}
		assistant := &fakeAssistant{err: fmt.Errorf("quota exceeded")}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		err := c.Handle(context.Background(), ownerEvent("Hello"))
		if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("Handle error = %v, want the assistant failure", err)
		}
	})

	t.Run("send failure propagates", func(t *testing.T) {
		client := &fakeClient{sendErr: fmt.Errorf("disconnected")}
		assistant := &fakeAssistant{reply: "oi"}
		var buf bytes.Buffer
		c := newTestCoordinator(t, client, assistant, &buf)

		err := c.Handle(context.Background(), ownerEvent("Hello"))
		if err == nil || !strings.Contains(err.Error(), "disconnected") {
			t.Errorf("Handle error = %v, want the send failure", err)
		}
	})
}

func TestNewCoordinator(t *testing.T) {
	t.Run("requires an owner", func(t *testing.T) {
		_, err := NewCoordinator(Config{}, &fakeClient{}, &fakeAssistant{}, &bytes.Buffer{}, nil)
		if err == nil {
			t.Fatal("expected an error for a missing owner")
		}
	})

	t.Run("defaults the prefix", func(t *testing.T) {
		c, err := NewCoordinator(Config{Owner: testOwner}, &fakeClient{}, &fakeAssistant{}, &bytes.Buffer{}, nil)
		if err != nil {
			t.Fatalf("NewCoordinator: %v", err)
		}
		if c.cfg.Prefix != DefaultPrefix {
			t.Errorf("Prefix = %q, want %q", c.cfg.Prefix, DefaultPrefix)
		}
	})
}
