package core

import "time"

// Thread is the durable identity for one agent's run. It is created once per
// agent instantiation and updated only by appending new current-state pointers
// or child thread links; deleting a thread cascades to its states, chunks and
// steps.
type Thread struct {
	ID             string    `json:"id"`
	CurrentStateID string    `json:"current_state_id"`
	InitialStateID string    `json:"initial_state_id"`
	ParentThreadID string    `json:"parent_thread_id,omitempty"`
	ChildThreadIDs []string  `json:"child_thread_ids,omitempty"`
	Blueprint      Blueprint `json:"blueprint"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewThread creates a thread pointing at its initial state.
func NewThread(bp Blueprint, initialStateID, parentThreadID string) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:             NewID(),
		CurrentStateID: initialStateID,
		InitialStateID: initialStateID,
		ParentThreadID: parentThreadID,
		Blueprint:      bp,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WithCurrentState returns a copy of the thread pointing at stateID.
func (t *Thread) WithCurrentState(stateID string) *Thread {
	next := *t
	next.ChildThreadIDs = copyStrings(t.ChildThreadIDs)
	next.CurrentStateID = stateID
	next.UpdatedAt = time.Now().UTC()
	return &next
}

// WithChild returns a copy of the thread with childID appended.
func (t *Thread) WithChild(childID string) *Thread {
	next := *t
	next.ChildThreadIDs = append(copyStrings(t.ChildThreadIDs), childID)
	next.UpdatedAt = time.Now().UTC()
	return &next
}
