package channels

import "encoding/json"

// Envelope is the polymorphic message payload of one inbound event. Exactly
// one content branch is normally set, but the type makes no such guarantee:
// every field is optional and every reader must tolerate any combination.
// Field names follow the wire format so the serialized form can be inspected
// for nested-type markers.
type Envelope struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *ImageMessage        `json:"imageMessage,omitempty"`
	VideoMessage        *VideoMessage        `json:"videoMessage,omitempty"`
	AudioMessage        *AudioMessage        `json:"audioMessage,omitempty"`
	StickerMessage      *StickerMessage      `json:"stickerMessage,omitempty"`
	ContactMessage      *ContactMessage      `json:"contactMessage,omitempty"`
	LocationMessage     *LocationMessage     `json:"locationMessage,omitempty"`
	ProductMessage      *ProductMessage      `json:"productMessage,omitempty"`
	DocumentMessage     *DocumentMessage     `json:"documentMessage,omitempty"`

	// Wrappers. DocumentWithCaptionMessage and the two historical view-once
	// variants nest a full envelope one level down; EditedMessage nests a
	// protocol message whose editedMessage field carries the new content.
	DocumentWithCaptionMessage *WrappedMessage  `json:"documentWithCaptionMessage,omitempty"`
	ViewOnceMessage            *WrappedMessage  `json:"viewOnceMessage,omitempty"`
	ViewOnceMessageV2          *WrappedMessage  `json:"viewOnceMessageV2,omitempty"`
	EditedMessage              *WrappedMessage  `json:"editedMessage,omitempty"`
	ProtocolMessage            *ProtocolMessage `json:"protocolMessage,omitempty"`

	// Non-content metadata keys. Never selected as a primary type.
	SenderKeyDistributionMessage json.RawMessage `json:"senderKeyDistributionMessage,omitempty"`
	MessageContextInfo           json.RawMessage `json:"messageContextInfo,omitempty"`
}

// ExtendedTextMessage is a text message with formatting, link preview or
// quoted-reply context.
type ExtendedTextMessage struct {
	Text        string       `json:"text,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

// ContextInfo carries quoted-reply metadata. QuotedMessage is a full nested
// envelope, so serializing the outer envelope exposes the quoted content's
// type keys.
type ContextInfo struct {
	StanzaID      string    `json:"stanzaId,omitempty"`
	Participant   string    `json:"participant,omitempty"`
	QuotedMessage *Envelope `json:"quotedMessage,omitempty"`
}

// ImageMessage is an image with an optional caption.
type ImageMessage struct {
	Caption  string `json:"caption,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

// VideoMessage is a video with an optional caption.
type VideoMessage struct {
	Caption  string `json:"caption,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	Seconds  uint32 `json:"seconds,omitempty"`
}

// AudioMessage is an audio file or voice note.
type AudioMessage struct {
	Mimetype string `json:"mimetype,omitempty"`
	Seconds  uint32 `json:"seconds,omitempty"`
	PTT      bool   `json:"ptt,omitempty"`
}

// StickerMessage is a sticker.
type StickerMessage struct {
	Mimetype string `json:"mimetype,omitempty"`
}

// ContactMessage is a shared contact card.
type ContactMessage struct {
	DisplayName string `json:"displayName,omitempty"`
	VCard       string `json:"vcard,omitempty"`
}

// LocationMessage is a shared location.
type LocationMessage struct {
	DegreesLatitude  float64 `json:"degreesLatitude,omitempty"`
	DegreesLongitude float64 `json:"degreesLongitude,omitempty"`
	Name             string  `json:"name,omitempty"`
}

// ProductMessage is a catalog product share.
type ProductMessage struct {
	Title string `json:"title,omitempty"`
}

// DocumentMessage is a document attachment.
type DocumentMessage struct {
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

// WrappedMessage nests an envelope one level down (view-once, edits,
// documents with captions).
type WrappedMessage struct {
	Message *Envelope `json:"message,omitempty"`
}

// ProtocolMessage carries protocol-level payloads; only the edited-message
// branch matters here.
type ProtocolMessage struct {
	EditedMessage *Envelope `json:"editedMessage,omitempty"`
}

// envelopeKeys lists the content key names in fixed order. The order is
// significant: a payload may nominally satisfy several branches, and the
// first set key wins.
var envelopeKeys = []string{
	"conversation",
	"extendedTextMessage",
	"imageMessage",
	"videoMessage",
	"audioMessage",
	"stickerMessage",
	"contactMessage",
	"locationMessage",
	"productMessage",
	"documentMessage",
	"documentWithCaptionMessage",
	"viewOnceMessage",
	"viewOnceMessageV2",
	"editedMessage",
	"protocolMessage",
}

// has reports whether the named content branch is set.
func (e *Envelope) has(key string) bool {
	switch key {
	case "conversation":
		return e.Conversation != ""
	case "extendedTextMessage":
		return e.ExtendedTextMessage != nil
	case "imageMessage":
		return e.ImageMessage != nil
	case "videoMessage":
		return e.VideoMessage != nil
	case "audioMessage":
		return e.AudioMessage != nil
	case "stickerMessage":
		return e.StickerMessage != nil
	case "contactMessage":
		return e.ContactMessage != nil
	case "locationMessage":
		return e.LocationMessage != nil
	case "productMessage":
		return e.ProductMessage != nil
	case "documentMessage":
		return e.DocumentMessage != nil
	case "documentWithCaptionMessage":
		return e.DocumentWithCaptionMessage != nil
	case "viewOnceMessage":
		return e.ViewOnceMessage != nil
	case "viewOnceMessageV2":
		return e.ViewOnceMessageV2 != nil
	case "editedMessage":
		return e.EditedMessage != nil
	case "protocolMessage":
		return e.ProtocolMessage != nil
	}
	return false
}

// PrimaryKey returns the first set content key, excluding the
// senderKeyDistributionMessage and messageContextInfo metadata keys.
// Returns "" for an empty envelope.
func (e *Envelope) PrimaryKey() string {
	if e == nil {
		return ""
	}
	for _, key := range envelopeKeys {
		if e.has(key) {
			return key
		}
	}
	return ""
}

// Serialize returns the envelope's JSON form. A nil envelope serializes to
// the empty string; marshal failures degrade to "" rather than erroring,
// since callers only scan the result for substrings.
func (e *Envelope) Serialize() string {
	if e == nil {
		return ""
	}
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}
