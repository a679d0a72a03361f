package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentmem/core"
)

// InMemoryStore is a volatile core.Store implementation holding everything in
// process-local maps. It is safe for concurrent access and best suited for
// tests or ephemeral demo runs. Returned entities are cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu           sync.RWMutex
	txMu         sync.Mutex
	threads      map[string]*core.Thread
	states       map[string]core.State
	chunks       map[string]core.Chunk
	chunkThreads map[string]string
	steps        map[string]core.Step
	queues       map[string][]core.AgentEvent
}

var _ core.Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		threads:      make(map[string]*core.Thread),
		states:       make(map[string]core.State),
		chunks:       make(map[string]core.Chunk),
		chunkThreads: make(map[string]string),
		steps:        make(map[string]core.Step),
		queues:       make(map[string][]core.AgentEvent),
	}
}

// CreateThread stores a clone of the thread.
func (s *InMemoryStore) CreateThread(_ context.Context, t *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[t.ID] = cloneThread(t)
	return nil
}

// GetThread returns a clone of the thread.
func (s *InMemoryStore) GetThread(_ context.Context, id string) (*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, &core.NotFoundError{Kind: "thread", ID: id}
	}
	return cloneThread(t), nil
}

// UpdateThread overwrites an existing thread.
func (s *InMemoryStore) UpdateThread(_ context.Context, t *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[t.ID]; !ok {
		return &core.NotFoundError{Kind: "thread", ID: t.ID}
	}
	s.threads[t.ID] = cloneThread(t)
	return nil
}

// DeleteThread removes the thread and cascades to its states, chunks, steps
// and queued events. Deleting an absent thread is a no-op.
func (s *InMemoryStore) DeleteThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, id)
	for sid, st := range s.states {
		if st.ThreadID == id {
			delete(s.states, sid)
		}
	}
	for cid, tid := range s.chunkThreads {
		if tid == id {
			delete(s.chunks, cid)
			delete(s.chunkThreads, cid)
		}
	}
	for stepID, step := range s.steps {
		if step.ThreadID == id {
			delete(s.steps, stepID)
		}
	}
	delete(s.queues, id)
	return nil
}

// SaveState stores a clone of the state.
func (s *InMemoryStore) SaveState(_ context.Context, st core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ID] = cloneState(st)
	return nil
}

// GetState returns a clone of the state.
func (s *InMemoryStore) GetState(_ context.Context, id string) (core.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return core.State{}, &core.NotFoundError{Kind: "state", ID: id}
	}
	return cloneState(st), nil
}

// SaveChunk stores a clone of the chunk scoped to a thread for cascade
// deletion.
func (s *InMemoryStore) SaveChunk(_ context.Context, threadID string, c core.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[c.ID] = cloneChunk(c)
	s.chunkThreads[c.ID] = threadID
	return nil
}

// GetChunk returns a clone of the chunk.
func (s *InMemoryStore) GetChunk(_ context.Context, id string) (core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return core.Chunk{}, &core.NotFoundError{Kind: "chunk", ID: id}
	}
	return cloneChunk(c), nil
}

// SaveStep stores the step.
func (s *InMemoryStore) SaveStep(_ context.Context, step core.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[step.ID] = step
	return nil
}

// GetStep returns the step.
func (s *InMemoryStore) GetStep(_ context.Context, id string) (core.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[id]
	if !ok {
		return core.Step{}, &core.NotFoundError{Kind: "step", ID: id}
	}
	return step, nil
}

// ListSteps returns a thread's steps in start order.
func (s *InMemoryStore) ListSteps(_ context.Context, threadID string) ([]core.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Step
	for _, step := range s.steps {
		if step.ThreadID == threadID {
			out = append(out, step)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// PushEvent appends the event to the thread's FIFO queue.
func (s *InMemoryStore) PushEvent(_ context.Context, threadID string, ev core.AgentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[threadID] = append(s.queues[threadID], ev)
	return nil
}

// PopEvent removes and returns the head of the queue, nil when empty.
func (s *InMemoryStore) PopEvent(_ context.Context, threadID string) (*core.AgentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[threadID]
	if len(q) == 0 {
		return nil, nil
	}
	ev := q[0]
	s.queues[threadID] = q[1:]
	return &ev, nil
}

// PeekEvent returns the head of the queue without removing it, nil when
// empty.
func (s *InMemoryStore) PeekEvent(_ context.Context, threadID string) (*core.AgentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.queues[threadID]
	if len(q) == 0 {
		return nil, nil
	}
	ev := q[0]
	return &ev, nil
}

// ClearEvents drops every queued event for the thread.
func (s *InMemoryStore) ClearEvents(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, threadID)
	return nil
}

// QueueLength reports the number of queued events for the thread.
func (s *InMemoryStore) QueueLength(_ context.Context, threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queues[threadID]), nil
}

// WithTx serializes the transaction and restores a pre-transaction snapshot
// when fn fails, so a failed multi-write leaves no partial data behind.
func (s *InMemoryStore) WithTx(_ context.Context, fn func(tx core.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	threads      map[string]*core.Thread
	states       map[string]core.State
	chunks       map[string]core.Chunk
	chunkThreads map[string]string
	steps        map[string]core.Step
	queues       map[string][]core.AgentEvent
}

func (s *InMemoryStore) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := memorySnapshot{
		threads:      make(map[string]*core.Thread, len(s.threads)),
		states:       make(map[string]core.State, len(s.states)),
		chunks:       make(map[string]core.Chunk, len(s.chunks)),
		chunkThreads: make(map[string]string, len(s.chunkThreads)),
		steps:        make(map[string]core.Step, len(s.steps)),
		queues:       make(map[string][]core.AgentEvent, len(s.queues)),
	}
	for k, v := range s.threads {
		snap.threads[k] = cloneThread(v)
	}
	for k, v := range s.states {
		snap.states[k] = cloneState(v)
	}
	for k, v := range s.chunks {
		snap.chunks[k] = v
	}
	for k, v := range s.chunkThreads {
		snap.chunkThreads[k] = v
	}
	for k, v := range s.steps {
		snap.steps[k] = v
	}
	for k, v := range s.queues {
		q := make([]core.AgentEvent, len(v))
		copy(q, v)
		snap.queues[k] = q
	}
	return snap
}

func (s *InMemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = snap.threads
	s.states = snap.states
	s.chunks = snap.chunks
	s.chunkThreads = snap.chunkThreads
	s.steps = snap.steps
	s.queues = snap.queues
}

func cloneThread(t *core.Thread) *core.Thread {
	next := *t
	next.ChildThreadIDs = append([]string(nil), t.ChildThreadIDs...)
	return &next
}

func cloneState(st core.State) core.State {
	next := st
	next.ChunkIDs = append([]string(nil), st.ChunkIDs...)
	next.Chunks = make(map[string]core.Chunk, len(st.Chunks))
	for k, v := range st.Chunks {
		next.Chunks[k] = v
	}
	return next
}

func cloneChunk(c core.Chunk) core.Chunk {
	next := c
	next.ChildIDs = append([]string(nil), c.ChildIDs...)
	next.Metadata.ParentIDs = append([]string(nil), c.Metadata.ParentIDs...)
	if c.Metadata.Custom != nil {
		next.Metadata.Custom = make(map[string]any, len(c.Metadata.Custom))
		for k, v := range c.Metadata.Custom {
			next.Metadata.Custom[k] = v
		}
	}
	return next
}
