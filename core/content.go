package core

import (
	"encoding/json"
	"strings"
)

// Content represents the polymorphic payload of a chunk. Concrete content
// types implement the unexported isContent marker enabling a closed set;
// renderers switch exhaustively over the variants with a generic fallback for
// RawContent.
type Content interface{ isContent() }

// TextContent is a plain UTF-8 text payload.
type TextContent struct {
	Text string
}

func (TextContent) isContent() {}

// ImageContent references an image either inline (base64 data) or by URI.
type ImageContent struct {
	Data      string // Base64 encoded bytes when inlined
	URI       string // External retrieval URI when not inlined
	MediaType string // MIME type hint, e.g. "image/png"
}

func (ImageContent) isContent() {}

// PartsContent is an ordered mixed sequence of text and image parts.
type PartsContent struct {
	Parts []Part
}

func (PartsContent) isContent() {}

// RawContent is the escape hatch for unmodeled content shapes. The generic
// renderer serializes it to JSON; the core never branches on its keys.
type RawContent struct {
	Fields map[string]any
}

func (RawContent) isContent() {}

// Part is a segment of a PartsContent sequence.
type Part interface{ isPart() }

// TextPart is a plain text segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// ImagePart is an image segment.
type ImagePart struct {
	Data      string
	URI       string
	MediaType string
}

func (ImagePart) isPart() {}

// Text creates a TextContent value.
func Text(s string) Content { return TextContent{Text: s} }

// ContentText extracts the plain-text projection of a content value. Images
// contribute a short placeholder, raw content its JSON serialization. Used for
// token estimation and prompt assembly.
func ContentText(c Content) string {
	switch v := c.(type) {
	case TextContent:
		return v.Text
	case ImageContent:
		return "[image " + v.MediaType + "]"
	case PartsContent:
		var sb strings.Builder
		for i, p := range v.Parts {
			if i > 0 {
				sb.WriteString("\n")
			}
			switch pv := p.(type) {
			case TextPart:
				sb.WriteString(pv.Text)
			case ImagePart:
				sb.WriteString("[image " + pv.MediaType + "]")
			}
		}
		return sb.String()
	case RawContent:
		b, err := json.Marshal(v.Fields)
		if err != nil {
			return ""
		}
		return string(b)
	case nil:
		return ""
	default:
		return ""
	}
}
