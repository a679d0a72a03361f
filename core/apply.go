package core

// ApplyResult accumulates the union of chunk ids added and removed while
// folding operations onto a state. Intended for observability; the
// authoritative record is the state chain itself.
type ApplyResult struct {
	AddedChunkIDs   []string
	RemovedChunkIDs []string
}

// ApplyOperation returns a new state with op applied. resolved supplies the
// chunks referenced by add/update/replace operations, keyed by chunk id. The
// input state is never mutated; on error no new state is produced.
func ApplyOperation(state State, op Operation, resolved map[string]Chunk) (State, error) {
	working := state.clone()
	result := &ApplyResult{}
	if err := applyInPlace(&working, op, resolved, result); err != nil {
		return State{}, err
	}
	return working.derive(state, &op, nil), nil
}

// ApplyOperations folds a list of operations sequentially onto state,
// carrying forward the new chunks added along the way. It returns the derived
// state, the accumulated add/remove sets, and the first error encountered.
// An empty operation list returns the input state unchanged.
func ApplyOperations(state State, ops []Operation, newChunks []Chunk, prov *Provenance) (State, *ApplyResult, error) {
	result := &ApplyResult{}
	if len(ops) == 0 {
		return state, result, nil
	}
	resolved := make(map[string]Chunk, len(newChunks))
	for _, c := range newChunks {
		resolved[c.ID] = c
	}
	working := state.clone()
	for _, op := range ops {
		if err := applyInPlace(&working, op, resolved, result); err != nil {
			return State{}, nil, err
		}
	}
	var opRecord *Operation
	if len(ops) == 1 {
		opRecord = &ops[0]
	} else {
		batch := NewBatchOperation(ops...)
		opRecord = &batch
	}
	return working.derive(state, opRecord, prov), result, nil
}

// applyInPlace mutates a working clone. Nested batches recurse against the
// same clone, so sub-operations observe their predecessors' effects; there is
// no rollback of earlier sub-operations when a later one fails (the caller
// discards the whole clone, so no partial state is ever committed).
func applyInPlace(s *State, op Operation, resolved map[string]Chunk, result *ApplyResult) error {
	switch op.Type {
	case OpAdd:
		chunk, ok := resolved[op.ChunkID]
		if !ok {
			return &InvalidOperationError{Op: op, Reason: "add references unresolved chunk " + op.ChunkID}
		}
		pos := len(s.ChunkIDs)
		if op.Position != nil {
			pos = clamp(*op.Position, 0, len(s.ChunkIDs))
		}
		s.ChunkIDs = insertAt(s.ChunkIDs, pos, chunk.ID)
		s.Chunks[chunk.ID] = chunk
		result.AddedChunkIDs = append(result.AddedChunkIDs, chunk.ID)

	case OpUpdate:
		pos := indexOf(s.ChunkIDs, op.TargetID)
		if pos < 0 {
			return &InvalidOperationError{Op: op, Reason: "update target not in state: " + op.TargetID}
		}
		chunk, ok := resolved[op.NewChunkID]
		if !ok {
			return &InvalidOperationError{Op: op, Reason: "update references unresolved chunk " + op.NewChunkID}
		}
		delete(s.Chunks, op.TargetID)
		s.ChunkIDs[pos] = chunk.ID
		s.Chunks[chunk.ID] = chunk
		result.RemovedChunkIDs = append(result.RemovedChunkIDs, op.TargetID)
		result.AddedChunkIDs = append(result.AddedChunkIDs, chunk.ID)

	case OpDelete:
		pos := indexOf(s.ChunkIDs, op.TargetID)
		if pos < 0 {
			return nil // idempotent
		}
		s.ChunkIDs = append(s.ChunkIDs[:pos], s.ChunkIDs[pos+1:]...)
		delete(s.Chunks, op.TargetID)
		result.RemovedChunkIDs = append(result.RemovedChunkIDs, op.TargetID)

	case OpReorder:
		pos := indexOf(s.ChunkIDs, op.TargetID)
		if pos < 0 {
			return &InvalidOperationError{Op: op, Reason: "reorder target not in state: " + op.TargetID}
		}
		s.ChunkIDs = append(s.ChunkIDs[:pos], s.ChunkIDs[pos+1:]...)
		dest := clamp(op.NewPosition, 0, len(s.ChunkIDs))
		s.ChunkIDs = insertAt(s.ChunkIDs, dest, op.TargetID)

	case OpReplace, OpBatchReplace:
		chunk, ok := resolved[op.NewChunkID]
		if !ok {
			return &InvalidOperationError{Op: op, Reason: "replace references unresolved chunk " + op.NewChunkID}
		}
		drop := make(map[string]bool, len(op.TargetIDs))
		for _, id := range op.TargetIDs {
			drop[id] = true
		}
		kept := make([]string, 0, len(s.ChunkIDs))
		inserted := false
		for _, id := range s.ChunkIDs {
			if drop[id] {
				delete(s.Chunks, id)
				result.RemovedChunkIDs = append(result.RemovedChunkIDs, id)
				if !inserted {
					kept = append(kept, chunk.ID)
					inserted = true
				}
				continue
			}
			kept = append(kept, id)
		}
		if !inserted {
			kept = append(kept, chunk.ID)
		}
		s.ChunkIDs = kept
		s.Chunks[chunk.ID] = chunk
		result.AddedChunkIDs = append(result.AddedChunkIDs, chunk.ID)

	case OpBatch:
		for _, nested := range op.Ops {
			if err := applyInPlace(s, nested, resolved, result); err != nil {
				return err
			}
		}

	default:
		return &InvalidOperationError{Op: op, Reason: "unknown operation type"}
	}
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func insertAt(ids []string, pos int, id string) []string {
	ids = append(ids, "")
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return ids
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
