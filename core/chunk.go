package core

import "time"

// ChunkType categorizes a chunk's role in agent memory.
type ChunkType string

const (
	// ChunkTypeSystem holds standing instructions injected at thread creation.
	ChunkTypeSystem ChunkType = "system"
	// ChunkTypeUserMessage is a message authored by the user.
	ChunkTypeUserMessage ChunkType = "user_message"
	// ChunkTypeAssistantMessage is a model-authored response.
	ChunkTypeAssistantMessage ChunkType = "assistant_message"
	// ChunkTypeToolCall records a tool invocation request.
	ChunkTypeToolCall ChunkType = "tool_call"
	// ChunkTypeToolResult records a tool outcome (success or failure).
	ChunkTypeToolResult ChunkType = "tool_result"
	// ChunkTypeSkillCall records a skill invocation request.
	ChunkTypeSkillCall ChunkType = "skill_call"
	// ChunkTypeSkillResult records a skill outcome.
	ChunkTypeSkillResult ChunkType = "skill_result"
	// ChunkTypeSubagentSpawn records a delegation request to a subagent.
	ChunkTypeSubagentSpawn ChunkType = "subagent_spawn"
	// ChunkTypeSubagentResult records a completed subagent's report.
	ChunkTypeSubagentResult ChunkType = "subagent_result"
	// ChunkTypeDelegation tracks in-flight delegated work.
	ChunkTypeDelegation ChunkType = "delegation"
	// ChunkTypeWorkingHistory is the container holding the live conversation
	// sequence as an ordered list of child chunk ids.
	ChunkTypeWorkingHistory ChunkType = "working_history"
	// ChunkTypeCompactedSummary replaces many compressible chunks with one
	// model-produced summary.
	ChunkTypeCompactedSummary ChunkType = "compacted_summary"
	// ChunkTypeTaskOutput is a terminal task outcome.
	ChunkTypeTaskOutput ChunkType = "task_output"
	// ChunkTypeTodo is a tracked todo item.
	ChunkTypeTodo ChunkType = "todo"
)

// ConversationChunkTypes is the set of chunk types eligible for compaction
// classification. CRITICAL retention still excludes any member.
var ConversationChunkTypes = map[ChunkType]bool{
	ChunkTypeUserMessage:      true,
	ChunkTypeAssistantMessage: true,
	ChunkTypeToolCall:         true,
	ChunkTypeToolResult:       true,
	ChunkTypeSkillCall:        true,
	ChunkTypeSkillResult:      true,
	ChunkTypeSubagentResult:   true,
	ChunkTypeDelegation:       true,
	ChunkTypeCompactedSummary: true,
}

// EnvironmentChunkTypes is the set of chunk types produced by the execution
// environment (tools, skills, delegated agents) rather than the conversation
// itself. The context builder can exclude them as a group.
var EnvironmentChunkTypes = map[ChunkType]bool{
	ChunkTypeToolCall:    true,
	ChunkTypeToolResult:  true,
	ChunkTypeSkillCall:   true,
	ChunkTypeSkillResult: true,
	ChunkTypeDelegation:  true,
}

// RetentionStrategy governs compaction eligibility for a chunk.
type RetentionStrategy string

const (
	// RetentionCritical marks content that must never be compacted away.
	RetentionCritical RetentionStrategy = "critical"
	// RetentionCompressible allows individual summarization.
	RetentionCompressible RetentionStrategy = "compressible"
	// RetentionBatchCompressible allows summarization only in batches.
	RetentionBatchCompressible RetentionStrategy = "batch_compressible"
	// RetentionDisposable allows outright removal under pressure.
	RetentionDisposable RetentionStrategy = "disposable"
	// RetentionEphemeral marks session-only content never persisted across runs.
	RetentionEphemeral RetentionStrategy = "ephemeral"
)

// Compressible reports whether the strategy permits the chunk to be collapsed
// into a summary or truncated.
func (r RetentionStrategy) Compressible() bool {
	switch r {
	case RetentionCompressible, RetentionBatchCompressible, RetentionDisposable:
		return true
	default:
		return false
	}
}

// ChunkMetadata carries provenance and extension data for a chunk.
type ChunkMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	// ParentIDs records lineage: the chunk ids this chunk was derived from.
	ParentIDs []string `json:"parent_ids,omitempty"`
	// Custom is an opaque extension bag. The core only branches on a small
	// documented key set (success, compaction markers, spawn ids).
	Custom map[string]any `json:"custom,omitempty"`
}

// Chunk is an immutable unit of agent memory. Chunks are never mutated in
// place; any update is expressed by deriving a new chunk whose metadata links
// back to its predecessor, so history is always reconstructible.
type Chunk struct {
	ID        string            `json:"id"`
	Type      ChunkType         `json:"type"`
	Subtype   string            `json:"subtype,omitempty"`
	Content   Content           `json:"content,omitempty"`
	Retention RetentionStrategy `json:"retention"`
	Mutable   bool              `json:"mutable,omitempty"`
	Priority  int               `json:"priority,omitempty"`
	// ChildIDs is populated only for working-history containers and holds the
	// live conversation sequence in dispatch order.
	ChildIDs []string      `json:"child_ids,omitempty"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkSpec is the caller-supplied recipe for a new chunk.
type ChunkSpec struct {
	Type      ChunkType
	Subtype   string
	Content   Content
	Retention RetentionStrategy
	Mutable   bool
	Priority  int
	ChildIDs  []string
	ParentIDs []string
	Custom    map[string]any
}

// NewChunk produces a new chunk with a fresh identifier and current timestamp.
// An empty retention defaults to RetentionCompressible.
func NewChunk(spec ChunkSpec) Chunk {
	retention := spec.Retention
	if retention == "" {
		retention = RetentionCompressible
	}
	return Chunk{
		ID:        NewID(),
		Type:      spec.Type,
		Subtype:   spec.Subtype,
		Content:   spec.Content,
		Retention: retention,
		Mutable:   spec.Mutable,
		Priority:  spec.Priority,
		ChildIDs:  copyStrings(spec.ChildIDs),
		Metadata: ChunkMetadata{
			CreatedAt: time.Now().UTC(),
			ParentIDs: copyStrings(spec.ParentIDs),
			Custom:    copyCustom(spec.Custom),
		},
	}
}

// DeriveChunk produces a new chunk from src with a new identifier, the given
// overrides applied, and lineage metadata referencing src.ID. It never mutates
// src.
func DeriveChunk(src Chunk, override func(*ChunkSpec)) Chunk {
	spec := ChunkSpec{
		Type:      src.Type,
		Subtype:   src.Subtype,
		Content:   src.Content,
		Retention: src.Retention,
		Mutable:   src.Mutable,
		Priority:  src.Priority,
		ChildIDs:  copyStrings(src.ChildIDs),
		Custom:    copyCustom(src.Metadata.Custom),
	}
	if override != nil {
		override(&spec)
	}
	derived := NewChunk(spec)
	derived.Metadata.ParentIDs = []string{src.ID}
	return derived
}

// AppendChild derives a new working-history container with childID appended to
// the child sequence.
func AppendChild(container Chunk, childID string) Chunk {
	return DeriveChunk(container, func(spec *ChunkSpec) {
		spec.ChildIDs = append(spec.ChildIDs, childID)
	})
}

// RemoveChildren derives a new container with the given child ids removed,
// preserving the order of the remainder.
func RemoveChildren(container Chunk, childIDs []string) Chunk {
	drop := make(map[string]bool, len(childIDs))
	for _, id := range childIDs {
		drop[id] = true
	}
	return DeriveChunk(container, func(spec *ChunkSpec) {
		kept := make([]string, 0, len(spec.ChildIDs))
		for _, id := range spec.ChildIDs {
			if !drop[id] {
				kept = append(kept, id)
			}
		}
		spec.ChildIDs = kept
	})
}

// ReplaceChildren derives a new container whose child sequence has the target
// ids removed and newChildID inserted at the position of the first removed
// target (or appended when none of the targets are present).
func ReplaceChildren(container Chunk, targetIDs []string, newChildID string) Chunk {
	drop := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		drop[id] = true
	}
	return DeriveChunk(container, func(spec *ChunkSpec) {
		kept := make([]string, 0, len(spec.ChildIDs)+1)
		inserted := false
		for _, id := range spec.ChildIDs {
			if drop[id] {
				if !inserted {
					kept = append(kept, newChildID)
					inserted = true
				}
				continue
			}
			kept = append(kept, id)
		}
		if !inserted {
			kept = append(kept, newChildID)
		}
		spec.ChildIDs = kept
	})
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyCustom(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
