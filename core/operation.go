package core

import "time"

// OperationType discriminates the operation tagged union.
type OperationType string

const (
	// OpAdd inserts a new chunk at an optional position (default: end).
	OpAdd OperationType = "add"
	// OpUpdate replaces a target chunk id with a new chunk id in place.
	OpUpdate OperationType = "update"
	// OpDelete removes a chunk id; deleting an absent id is a no-op.
	OpDelete OperationType = "delete"
	// OpReorder moves a chunk to a new index, clamped to valid bounds.
	OpReorder OperationType = "reorder"
	// OpReplace swaps exactly one chunk id for a new one.
	OpReplace OperationType = "replace"
	// OpBatchReplace collapses N chunk ids into one new chunk. Used by
	// compaction.
	OpBatchReplace OperationType = "batch_replace"
	// OpBatch applies nested operations in order against the evolving state.
	OpBatch OperationType = "batch"
)

// Operation is a declarative, replayable mutation intent applied to a state
// to produce its successor. Fields are populated per the Type discriminant.
type Operation struct {
	ID        string        `json:"id"`
	Type      OperationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`

	// ChunkID references the new chunk for add operations.
	ChunkID string `json:"chunk_id,omitempty"`
	// Position is the insertion index for add (nil means append).
	Position *int `json:"position,omitempty"`
	// TargetID is the existing chunk acted on by update/delete/reorder.
	TargetID string `json:"target_id,omitempty"`
	// TargetIDs are the existing chunks removed by replace/batch_replace.
	TargetIDs []string `json:"target_ids,omitempty"`
	// NewChunkID references the replacement chunk for update/replace/batch_replace.
	NewChunkID string `json:"new_chunk_id,omitempty"`
	// NewPosition is the destination index for reorder.
	NewPosition int `json:"new_position,omitempty"`
	// Ops are the nested operations of a batch.
	Ops []Operation `json:"ops,omitempty"`
}

func newOperation(t OperationType) Operation {
	return Operation{ID: NewID(), Type: t, Timestamp: time.Now().UTC()}
}

// NewAddOperation inserts chunkID at position (nil appends).
func NewAddOperation(chunkID string, position *int) Operation {
	op := newOperation(OpAdd)
	op.ChunkID = chunkID
	op.Position = position
	return op
}

// NewUpdateOperation replaces targetID with newChunkID, preserving order.
func NewUpdateOperation(targetID, newChunkID string) Operation {
	op := newOperation(OpUpdate)
	op.TargetID = targetID
	op.NewChunkID = newChunkID
	return op
}

// NewDeleteOperation removes targetID.
func NewDeleteOperation(targetID string) Operation {
	op := newOperation(OpDelete)
	op.TargetID = targetID
	return op
}

// NewReorderOperation moves targetID to newPosition.
func NewReorderOperation(targetID string, newPosition int) Operation {
	op := newOperation(OpReorder)
	op.TargetID = targetID
	op.NewPosition = newPosition
	return op
}

// NewReplaceOperation swaps targetID for newChunkID.
func NewReplaceOperation(targetID, newChunkID string) Operation {
	op := newOperation(OpReplace)
	op.TargetIDs = []string{targetID}
	op.NewChunkID = newChunkID
	return op
}

// NewBatchReplaceOperation collapses targetIDs into newChunkID at the position
// of the first removed target.
func NewBatchReplaceOperation(targetIDs []string, newChunkID string) Operation {
	op := newOperation(OpBatchReplace)
	op.TargetIDs = copyStrings(targetIDs)
	op.NewChunkID = newChunkID
	return op
}

// NewBatchOperation wraps nested operations applied in order.
func NewBatchOperation(ops ...Operation) Operation {
	op := newOperation(OpBatch)
	op.Ops = ops
	return op
}

// ReducerResult pairs the operations produced by reducing an event with the
// newly-created chunks those operations reference.
type ReducerResult struct {
	Operations []Operation `json:"operations"`
	NewChunks  []Chunk     `json:"new_chunks"`
}

// IsNoOp reports whether the result carries no operations.
func (r ReducerResult) IsNoOp() bool { return len(r.Operations) == 0 }

// Merge concatenates another result's operations and chunks onto r.
func (r ReducerResult) Merge(other ReducerResult) ReducerResult {
	return ReducerResult{
		Operations: append(append([]Operation{}, r.Operations...), other.Operations...),
		NewChunks:  append(append([]Chunk{}, r.NewChunks...), other.NewChunks...),
	}
}
