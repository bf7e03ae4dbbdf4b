// Package pipeline implements Manu's inbound message pipeline: text
// extraction, normalization, type classification, command parsing, owner
// authorization, interaction logging and assistant dispatch. Every step is a
// pure function over the event except the final dispatch side effects.
package pipeline

import "github.com/jholhewres/manu/pkg/manu/channels"

// ExtractText derives the canonical human-readable text from a message
// envelope. Known payload shapes are checked in fixed priority order and the
// first non-empty match wins. Total over any envelope: absent branches fall
// through, a nil or unmatched envelope yields "".
func ExtractText(m *channels.Envelope) string {
	if m == nil {
		return ""
	}

	if m.Conversation != "" {
		return m.Conversation
	}
	if ext := m.ExtendedTextMessage; ext != nil && ext.Text != "" {
		return ext.Text
	}
	if img := m.ImageMessage; img != nil && img.Caption != "" {
		return img.Caption
	}
	if vid := m.VideoMessage; vid != nil && vid.Caption != "" {
		return vid.Caption
	}
	if doc := nestedDocument(m.DocumentWithCaptionMessage); doc != nil && doc.Caption != "" {
		return doc.Caption
	}
	if cap := viewOnceCaption(m.ViewOnceMessage); cap != "" {
		return cap
	}
	if cap := viewOnceCaption(m.ViewOnceMessageV2); cap != "" {
		return cap
	}
	if edited := nestedEdited(m.EditedMessage); edited != nil {
		if ext := edited.ExtendedTextMessage; ext != nil && ext.Text != "" {
			return ext.Text
		}
		if img := edited.ImageMessage; img != nil && img.Caption != "" {
			return img.Caption
		}
	}

	return ""
}

// nestedDocument walks wrapper.message.documentMessage, tolerating nils.
func nestedDocument(w *channels.WrappedMessage) *channels.DocumentMessage {
	if w == nil || w.Message == nil {
		return nil
	}
	return w.Message.DocumentMessage
}

// viewOnceCaption returns the caption of an image or video nested inside a
// view-once wrapper. Image wins over video, matching the extraction order.
func viewOnceCaption(w *channels.WrappedMessage) string {
	if w == nil || w.Message == nil {
		return ""
	}
	if img := w.Message.ImageMessage; img != nil && img.Caption != "" {
		return img.Caption
	}
	if vid := w.Message.VideoMessage; vid != nil && vid.Caption != "" {
		return vid.Caption
	}
	return ""
}

// nestedEdited walks wrapper.message.protocolMessage.editedMessage.
func nestedEdited(w *channels.WrappedMessage) *channels.Envelope {
	if w == nil || w.Message == nil || w.Message.ProtocolMessage == nil {
		return nil
	}
	return w.Message.ProtocolMessage.EditedMessage
}
