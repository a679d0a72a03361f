package core

import "time"

// Provenance records which event/step/source caused a state transition.
type Provenance struct {
	EventID   string         `json:"event_id,omitempty"`
	EventType EventType      `json:"event_type,omitempty"`
	StepID    string         `json:"step_id,omitempty"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// Provenance source values used by the runtime.
const (
	SourceInitialization = "initialization"
	SourceEventDispatch  = "event_dispatch"
	SourceCompaction     = "compaction"
	SourceTruncation     = "truncation"
)

// StateMetadata carries history linkage and provenance for a state.
type StateMetadata struct {
	CreatedAt       time.Time  `json:"created_at"`
	PreviousStateID string     `json:"previous_state_id,omitempty"`
	Operation       *Operation `json:"operation,omitempty"`
	Provenance      *Provenance `json:"provenance,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
}

// State is an immutable snapshot of all chunks for a thread at a point in
// time. ChunkIDs defines rendering/iteration order; Chunks is the id lookup.
// The two are always consistent: every id has an entry and vice versa. States
// form a singly-linked history via Metadata.PreviousStateID.
type State struct {
	ID       string           `json:"id"`
	ThreadID string           `json:"thread_id,omitempty"`
	ChunkIDs []string         `json:"chunk_ids"`
	Chunks   map[string]Chunk `json:"chunks"`
	Metadata StateMetadata    `json:"metadata"`
}

// NewState builds an initial state from an ordered chunk list.
func NewState(threadID string, chunks []Chunk, prov *Provenance) State {
	ids := make([]string, 0, len(chunks))
	byID := make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}
	return State{
		ID:       NewID(),
		ThreadID: threadID,
		ChunkIDs: ids,
		Chunks:   byID,
		Metadata: StateMetadata{
			CreatedAt:  time.Now().UTC(),
			Provenance: prov,
		},
	}
}

// Chunk returns the chunk for id, if present.
func (s State) Chunk(id string) (Chunk, bool) {
	c, ok := s.Chunks[id]
	return c, ok
}

// OrderedChunks returns the chunks in ChunkIDs order.
func (s State) OrderedChunks() []Chunk {
	out := make([]Chunk, 0, len(s.ChunkIDs))
	for _, id := range s.ChunkIDs {
		if c, ok := s.Chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// WorkingHistory returns the first working-history container chunk, if any.
func (s State) WorkingHistory() (Chunk, bool) {
	for _, id := range s.ChunkIDs {
		if c, ok := s.Chunks[id]; ok && c.Type == ChunkTypeWorkingHistory {
			return c, true
		}
	}
	return Chunk{}, false
}

// ChunksByType returns all chunks of the given type in order.
func (s State) ChunksByType(t ChunkType) []Chunk {
	var out []Chunk
	for _, id := range s.ChunkIDs {
		if c, ok := s.Chunks[id]; ok && c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// clone produces a deep copy of the ordering slice and lookup map so a
// derived state can be assembled without touching the source. Chunk values
// themselves are immutable and shared.
func (s State) clone() State {
	ids := make([]string, len(s.ChunkIDs))
	copy(ids, s.ChunkIDs)
	byID := make(map[string]Chunk, len(s.Chunks))
	for k, v := range s.Chunks {
		byID[k] = v
	}
	next := s
	next.ChunkIDs = ids
	next.Chunks = byID
	return next
}

// derive finalizes a mutated clone into a new state linked to its
// predecessor.
func (s State) derive(prev State, op *Operation, prov *Provenance) State {
	s.ID = NewID()
	s.Metadata = StateMetadata{
		CreatedAt:       time.Now().UTC(),
		PreviousStateID: prev.ID,
		Operation:       op,
		Provenance:      prov,
	}
	return s
}
