package prompt

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentmem/core"
)

// Message roles produced by the built-in renderers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Renderer turns one chunk into a role-tagged text block. The first renderer
// whose CanRender predicate matches a chunk determines both its role and its
// rendered text.
type Renderer interface {
	CanRender(c core.Chunk) bool
	Role(c core.Chunk) string
	Render(c core.Chunk) string
}

// Registry resolves chunks to renderers. Custom renderers registered at
// runtime take priority over built-ins. It is a plain value passed through
// constructor injection; no global state.
type Registry struct {
	custom   []Renderer
	builtins []Renderer
	fallback Renderer
}

// NewRegistry constructs a registry with the built-in renderers and the
// generic fallback installed.
func NewRegistry() *Registry {
	return &Registry{
		builtins: []Renderer{
			systemRenderer{},
			messageRenderer{},
			toolRenderer{},
			subagentRenderer{},
			summaryRenderer{},
			taskRenderer{},
			todoRenderer{},
		},
		fallback: genericRenderer{},
	}
}

// Register prepends a custom renderer; later registrations win over earlier
// ones and all customs win over built-ins.
func (r *Registry) Register(renderer Renderer) {
	r.custom = append([]Renderer{renderer}, r.custom...)
}

// Resolve returns the renderer responsible for the chunk. The generic
// fallback always matches.
func (r *Registry) Resolve(c core.Chunk) Renderer {
	for _, renderer := range r.custom {
		if renderer.CanRender(c) {
			return renderer
		}
	}
	for _, renderer := range r.builtins {
		if renderer.CanRender(c) {
			return renderer
		}
	}
	return r.fallback
}

type systemRenderer struct{}

func (systemRenderer) CanRender(c core.Chunk) bool { return c.Type == core.ChunkTypeSystem }
func (systemRenderer) Role(core.Chunk) string      { return RoleSystem }
func (systemRenderer) Render(c core.Chunk) string  { return core.ContentText(c.Content) }

type messageRenderer struct{}

func (messageRenderer) CanRender(c core.Chunk) bool {
	return c.Type == core.ChunkTypeUserMessage || c.Type == core.ChunkTypeAssistantMessage
}

func (messageRenderer) Role(c core.Chunk) string {
	if c.Type == core.ChunkTypeUserMessage {
		return RoleUser
	}
	return RoleAssistant
}

func (messageRenderer) Render(c core.Chunk) string {
	text := core.ContentText(c.Content)
	if c.Subtype == "parent" {
		return "[from parent agent]\n" + text
	}
	return text
}

type toolRenderer struct{}

func (toolRenderer) CanRender(c core.Chunk) bool {
	switch c.Type {
	case core.ChunkTypeToolCall, core.ChunkTypeSkillCall, core.ChunkTypeToolResult, core.ChunkTypeSkillResult:
		return true
	}
	return false
}

func (toolRenderer) Role(c core.Chunk) string {
	if c.Type == core.ChunkTypeToolCall || c.Type == core.ChunkTypeSkillCall {
		return RoleAssistant
	}
	return RoleTool
}

func (toolRenderer) Render(c core.Chunk) string {
	name, _ := c.Metadata.Custom["name"].(string)
	switch c.Type {
	case core.ChunkTypeToolCall, core.ChunkTypeSkillCall:
		return fmt.Sprintf("[%s name=%s]\n%s", c.Type, name, core.ContentText(c.Content))
	default:
		success := true
		if v, ok := c.Metadata.Custom["success"].(bool); ok {
			success = v
		}
		return fmt.Sprintf("[%s name=%s success=%t]\n%s", c.Type, name, success, core.ContentText(c.Content))
	}
}

type subagentRenderer struct{}

func (subagentRenderer) CanRender(c core.Chunk) bool {
	switch c.Type {
	case core.ChunkTypeSubagentSpawn, core.ChunkTypeSubagentResult, core.ChunkTypeDelegation:
		return true
	}
	return false
}

func (subagentRenderer) Role(c core.Chunk) string {
	if c.Type == core.ChunkTypeSubagentSpawn {
		return RoleAssistant
	}
	return RoleUser
}

func (subagentRenderer) Render(c core.Chunk) string {
	switch c.Type {
	case core.ChunkTypeSubagentSpawn:
		name, _ := c.Metadata.Custom["subagent_name"].(string)
		return fmt.Sprintf("[subagent_spawn name=%s]\n%s", name, core.ContentText(c.Content))
	case core.ChunkTypeSubagentResult:
		return "[subagent_result]\n" + core.ContentText(c.Content)
	default:
		tag := "delegation"
		if c.Subtype != "" {
			tag = "delegation " + c.Subtype
		}
		return fmt.Sprintf("[%s]\n%s", tag, core.ContentText(c.Content))
	}
}

type summaryRenderer struct{}

func (summaryRenderer) CanRender(c core.Chunk) bool {
	return c.Type == core.ChunkTypeCompactedSummary
}
func (summaryRenderer) Role(core.Chunk) string { return RoleAssistant }
func (summaryRenderer) Render(c core.Chunk) string {
	return "[conversation summary]\n" + core.ContentText(c.Content)
}

type taskRenderer struct{}

func (taskRenderer) CanRender(c core.Chunk) bool { return c.Type == core.ChunkTypeTaskOutput }
func (taskRenderer) Role(core.Chunk) string      { return RoleAssistant }
func (taskRenderer) Render(c core.Chunk) string {
	return fmt.Sprintf("[task_output status=%s]\n%s", c.Subtype, core.ContentText(c.Content))
}

type todoRenderer struct{}

func (todoRenderer) CanRender(c core.Chunk) bool { return c.Type == core.ChunkTypeTodo }
func (todoRenderer) Role(core.Chunk) string      { return RoleSystem }
func (todoRenderer) Render(c core.Chunk) string {
	done := false
	if v, ok := c.Metadata.Custom["done"].(bool); ok {
		done = v
	}
	marker := " "
	if done {
		marker = "x"
	}
	return fmt.Sprintf("[todo] [%s] %s", marker, core.ContentText(c.Content))
}

// genericRenderer is the catch-all for unrecognized chunk shapes: id, type
// and the JSON-serialized content.
type genericRenderer struct{}

func (genericRenderer) CanRender(core.Chunk) bool { return true }
func (genericRenderer) Role(core.Chunk) string    { return RoleUser }

func (genericRenderer) Render(c core.Chunk) string {
	var payload string
	if c.Content != nil {
		if b, err := core.MarshalContent(c.Content); err == nil {
			payload = string(b)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[chunk id=%s type=%s", c.ID, c.Type)
	if c.Subtype != "" {
		fmt.Fprintf(&sb, " subtype=%s", c.Subtype)
	}
	sb.WriteString("]")
	if payload != "" {
		sb.WriteString("\n")
		sb.WriteString(payload)
	}
	return sb.String()
}
