package core

import (
	"encoding/json"
	"fmt"
)

// contentEnvelope is the wire form of the Content sum type. A kind tag keeps
// unmarshaling unambiguous across variants.
type contentEnvelope struct {
	Kind      string         `json:"kind"`
	Text      string         `json:"text,omitempty"`
	Data      string         `json:"data,omitempty"`
	URI       string         `json:"uri,omitempty"`
	MediaType string         `json:"media_type,omitempty"`
	Parts     []partEnvelope `json:"parts,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type partEnvelope struct {
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Data      string `json:"data,omitempty"`
	URI       string `json:"uri,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// MarshalContent serializes a content value with its kind tag.
func MarshalContent(c Content) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var env contentEnvelope
	switch v := c.(type) {
	case TextContent:
		env = contentEnvelope{Kind: "text", Text: v.Text}
	case ImageContent:
		env = contentEnvelope{Kind: "image", Data: v.Data, URI: v.URI, MediaType: v.MediaType}
	case PartsContent:
		env = contentEnvelope{Kind: "parts"}
		for _, p := range v.Parts {
			switch pv := p.(type) {
			case TextPart:
				env.Parts = append(env.Parts, partEnvelope{Kind: "text", Text: pv.Text})
			case ImagePart:
				env.Parts = append(env.Parts, partEnvelope{Kind: "image", Data: pv.Data, URI: pv.URI, MediaType: pv.MediaType})
			default:
				return nil, fmt.Errorf("marshal content: unknown part type %T", p)
			}
		}
	case RawContent:
		env = contentEnvelope{Kind: "raw", Fields: v.Fields}
	default:
		return nil, fmt.Errorf("marshal content: unknown content type %T", c)
	}
	return json.Marshal(env)
}

// UnmarshalContent deserializes a content value produced by MarshalContent.
func UnmarshalContent(data []byte) (Content, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env contentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "text":
		return TextContent{Text: env.Text}, nil
	case "image":
		return ImageContent{Data: env.Data, URI: env.URI, MediaType: env.MediaType}, nil
	case "parts":
		parts := make([]Part, 0, len(env.Parts))
		for _, p := range env.Parts {
			switch p.Kind {
			case "text":
				parts = append(parts, TextPart{Text: p.Text})
			case "image":
				parts = append(parts, ImagePart{Data: p.Data, URI: p.URI, MediaType: p.MediaType})
			default:
				return nil, fmt.Errorf("unmarshal content: unknown part kind %q", p.Kind)
			}
		}
		return PartsContent{Parts: parts}, nil
	case "raw":
		return RawContent{Fields: env.Fields}, nil
	default:
		return nil, fmt.Errorf("unmarshal content: unknown kind %q", env.Kind)
	}
}

// chunkJSON mirrors Chunk with Content as raw JSON so the sum type survives a
// round trip.
type chunkJSON struct {
	ID        string            `json:"id"`
	Type      ChunkType         `json:"type"`
	Subtype   string            `json:"subtype,omitempty"`
	Content   json.RawMessage   `json:"content,omitempty"`
	Retention RetentionStrategy `json:"retention"`
	Mutable   bool              `json:"mutable,omitempty"`
	Priority  int               `json:"priority,omitempty"`
	ChildIDs  []string          `json:"child_ids,omitempty"`
	Metadata  ChunkMetadata     `json:"metadata"`
}

// MarshalJSON implements json.Marshaler.
func (c Chunk) MarshalJSON() ([]byte, error) {
	content, err := MarshalContent(c.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chunkJSON{
		ID:        c.ID,
		Type:      c.Type,
		Subtype:   c.Subtype,
		Content:   content,
		Retention: c.Retention,
		Mutable:   c.Mutable,
		Priority:  c.Priority,
		ChildIDs:  c.ChildIDs,
		Metadata:  c.Metadata,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var cj chunkJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	content, err := UnmarshalContent(cj.Content)
	if err != nil {
		return err
	}
	*c = Chunk{
		ID:        cj.ID,
		Type:      cj.Type,
		Subtype:   cj.Subtype,
		Content:   content,
		Retention: cj.Retention,
		Mutable:   cj.Mutable,
		Priority:  cj.Priority,
		ChildIDs:  cj.ChildIDs,
		Metadata:  cj.Metadata,
	}
	return nil
}
