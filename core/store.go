package core

import "context"

// Store persists threads, states, chunks and steps plus a per-thread event
// queue. The runtime never assumes a specific database; implementations must
// be safe for concurrent use. Missing entities are reported with a
// NotFoundError (errors.Is(err, ErrNotFound)).
type Store interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	UpdateThread(ctx context.Context, t *Thread) error
	// DeleteThread removes the thread and cascades to its states, chunks,
	// steps and queued events.
	DeleteThread(ctx context.Context, id string) error

	SaveState(ctx context.Context, s State) error
	GetState(ctx context.Context, id string) (State, error)

	SaveChunk(ctx context.Context, threadID string, c Chunk) error
	GetChunk(ctx context.Context, id string) (Chunk, error)

	SaveStep(ctx context.Context, s Step) error
	GetStep(ctx context.Context, id string) (Step, error)
	// ListSteps returns a thread's steps in start order.
	ListSteps(ctx context.Context, threadID string) ([]Step, error)

	// Per-thread FIFO event queue.
	PushEvent(ctx context.Context, threadID string, ev AgentEvent) error
	// PopEvent returns nil when the queue is empty.
	PopEvent(ctx context.Context, threadID string) (*AgentEvent, error)
	PeekEvent(ctx context.Context, threadID string) (*AgentEvent, error)
	ClearEvents(ctx context.Context, threadID string) error
	QueueLength(ctx context.Context, threadID string) (int, error)

	// WithTx runs fn with transactional multi-write semantics: either every
	// write inside fn is visible afterwards or none is.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
