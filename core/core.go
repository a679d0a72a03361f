package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for chunks, states, operations and
// events. It is a plain UUID string; callers needing sortable identifiers
// (e.g. durable step rows) layer their own scheme on top.
func NewID() string { return uuid.NewString() }
