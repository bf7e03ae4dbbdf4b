package pipeline

import (
	"strings"

	"github.com/jholhewres/manu/pkg/manu/channels"
)

// ContentType tags a message's dominant content classification.
type ContentType string

const (
	TypeText     ContentType = "text"
	TypeImage    ContentType = "image"
	TypeVideo    ContentType = "video"
	TypeAudio    ContentType = "audio"
	TypeSticker  ContentType = "sticker"
	TypeContact  ContentType = "contact"
	TypeLocation ContentType = "location"
	TypeProduct  ContentType = "product"
	// TypeDocument only ever appears as a quoted sub-type; primary
	// classification has no document branch.
	TypeDocument ContentType = "document"
	TypeUnknown  ContentType = "unknown"
)

// Classification is the derived content type of one event.
type Classification struct {
	// Primary is the dominant content type.
	Primary ContentType

	// Display is an operator-facing label: the type name for media, or the
	// first 50 characters of the canonical text (newlines stripped) for text.
	Display string

	// IsQuoted is true when the message is an extended-text reply wrapping
	// quoted content.
	IsQuoted bool

	// Quoted is the quoted payload's content type when IsQuoted is set.
	Quoted ContentType
}

// primaryTypes maps media envelope keys to content types, in selection order.
var primaryTypes = []struct {
	key     string
	typ     ContentType
	display string
}{
	{"imageMessage", TypeImage, "Image"},
	{"videoMessage", TypeVideo, "Video"},
	{"audioMessage", TypeAudio, "Audio"},
	{"stickerMessage", TypeSticker, "Sticker"},
	{"contactMessage", TypeContact, "Contact"},
	{"locationMessage", TypeLocation, "Location"},
	{"productMessage", TypeProduct, "Product"},
}

// quotedMarkers lists the nested-type marker substrings probed against the
// serialized envelope, in fixed priority order. The containment scan is
// approximate: a marker embedded in an unrelated field matches too.
var quotedMarkers = []struct {
	marker string
	typ    ContentType
}{
	{"textMessage", TypeText},
	{"imageMessage", TypeImage},
	{"videoMessage", TypeVideo},
	{"documentMessage", TypeDocument},
	{"audioMessage", TypeAudio},
	{"stickerMessage", TypeSticker},
	{"contactMessage", TypeContact},
	{"locationMessage", TypeLocation},
	{"productMessage", TypeProduct},
}

// Classify determines the primary content type of an envelope and, for
// extended-text replies, the quoted payload's type. canonicalText is the
// already-extracted text, used only for the display fallback. Total: a nil
// or empty envelope classifies as text with an empty display.
func Classify(m *channels.Envelope, canonicalText string) Classification {
	primaryKey := m.PrimaryKey()

	cls := Classification{Primary: TypeText, Display: displayFallback(canonicalText)}
	for _, pt := range primaryTypes {
		if pt.key == primaryKey {
			cls.Primary = pt.typ
			cls.Display = pt.display
			break
		}
	}

	// Quoted detection is independent and applies only to the extended-text
	// wrapper.
	if primaryKey == "extendedTextMessage" {
		serialized := m.Serialize()
		for _, qm := range quotedMarkers {
			if strings.Contains(serialized, qm.marker) {
				cls.IsQuoted = true
				cls.Quoted = qm.typ
				break
			}
		}
	}

	return cls
}

// displayFallback trims the canonical text to 50 characters with newlines
// stripped, counting bytes like the original record did.
func displayFallback(text string) string {
	if len(text) > 50 {
		text = text[:50]
	}
	return strings.ReplaceAll(text, "\n", "")
}
