// Package whatsapp – events.go processes incoming whatsmeow events and
// converts them into transport-neutral channel events. The raw message
// payload is preserved in full so the pipeline can run its own extraction
// and classification; no filtering happens here beyond protocol noise.
package whatsapp

import (
	"github.com/jholhewres/manu/pkg/manu/channels"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// ConnectionState represents the current connection state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StatePairing      ConnectionState = "pairing"
	StateLoggingOut   ConnectionState = "logging_out"
)

// handleEvent is the main whatsmeow event dispatcher.
func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessage(evt)

	case *events.Connected:
		w.handleConnected(evt)

	case *events.Disconnected:
		w.handleDisconnected(evt)

	case *events.StreamReplaced:
		w.handleStreamReplaced(evt)

	case *events.LoggedOut:
		w.handleLoggedOut(evt)

	case *events.PairSuccess:
		w.logger.Info("whatsapp: device paired",
			"jid", evt.ID,
			"platform", evt.Platform)

	case *events.KeepAliveTimeout:
		w.logger.Warn("whatsapp: keep-alive timeout",
			"error_count", evt.ErrorCount,
			"last_success", evt.LastSuccess)
		if evt.ErrorCount >= 3 && w.getState() == StateConnected {
			w.logger.Error("whatsapp: keep-alive failed repeatedly, forcing reconnection")
			w.setState(StateReconnecting)
			w.connected.Store(false)
			go w.attemptReconnect()
		}

	case *events.HistorySync:
		w.logger.Debug("whatsapp: history sync received")
	}
}

// handleConnected handles successful connection.
func (w *WhatsApp) handleConnected(_ *events.Connected) {
	w.setState(StateConnected)
	w.connected.Store(true)
	w.reconnectAttempts.Store(0)

	w.logger.Info("whatsapp: connected",
		"jid", w.getClientJID())
}

// handleDisconnected handles disconnection.
func (w *WhatsApp) handleDisconnected(_ *events.Disconnected) {
	previous := w.getState()
	w.setState(StateDisconnected)
	w.connected.Store(false)

	w.logger.Warn("whatsapp: disconnected")

	if previous == StateConnected && w.ctx.Err() == nil {
		go w.attemptReconnect()
	}
}

// handleStreamReplaced handles another device taking over the session.
func (w *WhatsApp) handleStreamReplaced(_ *events.StreamReplaced) {
	w.setState(StateDisconnected)
	w.connected.Store(false)
	w.logger.Error("whatsapp: stream replaced, another device connected")
}

// handleLoggedOut handles session invalidation.
func (w *WhatsApp) handleLoggedOut(evt *events.LoggedOut) {
	w.setState(StateDisconnected)
	w.connected.Store(false)

	reason := "unknown"
	if evt.Reason != 0 {
		reason = evt.Reason.String()
	}
	w.logger.Error("whatsapp: logged out, pairing required again",
		"reason", reason,
		"on_connect", evt.OnConnect)
}

// handleMessage converts an incoming message event. Self-sent, group and
// broadcast messages all pass through untouched; the pipeline decides what
// to do with them.
func (w *WhatsApp) handleMessage(evt *events.Message) {
	msg := convertEnvelope(evt.Message)
	if msg == nil {
		return
	}

	participant := ""
	if evt.Info.IsGroup {
		participant = evt.Info.Sender.String()
	}

	w.emit(&channels.Event{
		Key: channels.Key{
			RemoteJID:   evt.Info.Chat.String(),
			Participant: participant,
			FromMe:      evt.Info.IsFromMe,
			ID:          string(evt.Info.ID),
		},
		PushName:  evt.Info.PushName,
		Timestamp: evt.Info.Timestamp,
		Message:   msg,
	})
}

// emit delivers an event to the consumer, dropping it if the buffer is
// full or the channel has been closed.
func (w *WhatsApp) emit(evt *channels.Event) {
	if w.eventsClosed.Load() {
		return
	}

	select {
	case w.events <- evt:
	case <-w.ctx.Done():
	default:
		w.logger.Warn("whatsapp: event channel full, dropping event",
			"chat", evt.Key.RemoteJID, "id", evt.Key.ID)
	}
}

// convertEnvelope maps a wire message into the transport-neutral envelope,
// recursing through quoted, view-once, captioned-document and edit
// wrappers.
func convertEnvelope(m *waE2E.Message) *channels.Envelope {
	if m == nil {
		return nil
	}

	env := &channels.Envelope{
		Conversation: m.GetConversation(),
	}

	if ext := m.ExtendedTextMessage; ext != nil {
		env.ExtendedTextMessage = &channels.ExtendedTextMessage{
			Text:        ext.GetText(),
			ContextInfo: convertContextInfo(ext.GetContextInfo()),
		}
	}
	if img := m.ImageMessage; img != nil {
		env.ImageMessage = &channels.ImageMessage{
			Caption:  img.GetCaption(),
			Mimetype: img.GetMimetype(),
		}
	}
	if vid := m.VideoMessage; vid != nil {
		env.VideoMessage = &channels.VideoMessage{
			Caption:  vid.GetCaption(),
			Mimetype: vid.GetMimetype(),
			Seconds:  vid.GetSeconds(),
		}
	}
	if audio := m.AudioMessage; audio != nil {
		env.AudioMessage = &channels.AudioMessage{
			Mimetype: audio.GetMimetype(),
			Seconds:  audio.GetSeconds(),
			PTT:      audio.GetPTT(),
		}
	}
	if sticker := m.StickerMessage; sticker != nil {
		env.StickerMessage = &channels.StickerMessage{
			Mimetype: sticker.GetMimetype(),
		}
	}
	if contact := m.ContactMessage; contact != nil {
		env.ContactMessage = &channels.ContactMessage{
			DisplayName: contact.GetDisplayName(),
			VCard:       contact.GetVcard(),
		}
	}
	if loc := m.LocationMessage; loc != nil {
		env.LocationMessage = &channels.LocationMessage{
			DegreesLatitude:  loc.GetDegreesLatitude(),
			DegreesLongitude: loc.GetDegreesLongitude(),
			Name:             loc.GetName(),
		}
	}
	if prod := m.ProductMessage; prod != nil {
		env.ProductMessage = &channels.ProductMessage{
			Title: prod.GetProduct().GetTitle(),
		}
	}
	if doc := m.DocumentMessage; doc != nil {
		env.DocumentMessage = &channels.DocumentMessage{
			Caption:  doc.GetCaption(),
			FileName: doc.GetFileName(),
			Mimetype: doc.GetMimetype(),
		}
	}

	if dwc := m.DocumentWithCaptionMessage; dwc != nil {
		env.DocumentWithCaptionMessage = &channels.WrappedMessage{
			Message: convertEnvelope(dwc.GetMessage()),
		}
	}
	if vo := m.ViewOnceMessage; vo != nil {
		env.ViewOnceMessage = &channels.WrappedMessage{
			Message: convertEnvelope(vo.GetMessage()),
		}
	}
	if vo2 := m.ViewOnceMessageV2; vo2 != nil {
		env.ViewOnceMessageV2 = &channels.WrappedMessage{
			Message: convertEnvelope(vo2.GetMessage()),
		}
	}
	if edited := m.EditedMessage; edited != nil {
		inner := edited.GetMessage()
		wrapped := &channels.Envelope{}
		if pm := inner.GetProtocolMessage(); pm != nil {
			wrapped.ProtocolMessage = &channels.ProtocolMessage{
				EditedMessage: convertEnvelope(pm.GetEditedMessage()),
			}
		}
		env.EditedMessage = &channels.WrappedMessage{Message: wrapped}
	}

	if env.PrimaryKey() == "" {
		// Protocol noise (receipts, key distribution, ephemeral settings).
		return nil
	}
	return env
}

// convertContextInfo maps quoted-reply metadata, including the quoted
// payload itself.
func convertContextInfo(ci *waE2E.ContextInfo) *channels.ContextInfo {
	if ci == nil {
		return nil
	}
	converted := &channels.ContextInfo{
		StanzaID:    ci.GetStanzaID(),
		Participant: ci.GetParticipant(),
	}
	if quoted := ci.GetQuotedMessage(); quoted != nil {
		converted.QuotedMessage = convertEnvelope(quoted)
	}
	if converted.StanzaID == "" && converted.Participant == "" && converted.QuotedMessage == nil {
		return nil
	}
	return converted
}
