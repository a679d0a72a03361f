package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/core"
)

func newThread() *core.Thread {
	return core.NewThread(core.Blueprint{Name: "test"}, core.NewID(), "")
}

func TestInMemoryStore_ThreadLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	thread := newThread()
	require.NoError(t, s.CreateThread(ctx, thread))

	got, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)
	assert.Equal(t, thread.CurrentStateID, got.CurrentStateID)

	// mutating the returned clone must not affect the stored thread
	got.ChildThreadIDs = append(got.ChildThreadIDs, "child")
	again, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Empty(t, again.ChildThreadIDs)

	updated := thread.WithCurrentState("state-2")
	require.NoError(t, s.UpdateThread(ctx, updated))
	got, err = s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "state-2", got.CurrentStateID)

	_, err = s.GetThread(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	err = s.UpdateThread(ctx, newThread())
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestInMemoryStore_StateCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	chunk := core.NewChunk(core.ChunkSpec{Type: core.ChunkTypeUserMessage, Content: core.Text("hi")})
	state := core.NewState("t1", []core.Chunk{chunk}, nil)
	require.NoError(t, s.SaveState(ctx, state))

	got, err := s.GetState(ctx, state.ID)
	require.NoError(t, err)
	delete(got.Chunks, chunk.ID)

	again, err := s.GetState(ctx, state.ID)
	require.NoError(t, err)
	assert.Contains(t, again.Chunks, chunk.ID)
}

func TestInMemoryStore_EventQueueFIFO(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	ev, err := s.PopEvent(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, ev)

	first := core.NewUserMessageEvent("one")
	second := core.NewUserMessageEvent("two")
	require.NoError(t, s.PushEvent(ctx, "t1", first))
	require.NoError(t, s.PushEvent(ctx, "t1", second))

	n, err := s.QueueLength(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	peeked, err := s.PeekEvent(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, peeked)
	assert.Equal(t, first.ID, peeked.ID)

	popped, err := s.PopEvent(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, first.ID, popped.ID)

	popped, err = s.PopEvent(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, second.ID, popped.ID)

	popped, err = s.PopEvent(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, popped)
}

func TestInMemoryStore_ListStepsOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	older := core.NewStep("t1", core.NewUserMessageEvent("a"), "s0")
	older.StartedAt = time.Now().UTC().Add(-time.Minute)
	newer := core.NewStep("t1", core.NewUserMessageEvent("b"), "s1")
	other := core.NewStep("t2", core.NewUserMessageEvent("c"), "s0")

	require.NoError(t, s.SaveStep(ctx, newer))
	require.NoError(t, s.SaveStep(ctx, older))
	require.NoError(t, s.SaveStep(ctx, other))

	steps, err := s.ListSteps(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, older.ID, steps[0].ID)
	assert.Equal(t, newer.ID, steps[1].ID)
}

func TestInMemoryStore_DeleteThreadCascades(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	thread := newThread()
	require.NoError(t, s.CreateThread(ctx, thread))

	chunk := core.NewChunk(core.ChunkSpec{Type: core.ChunkTypeUserMessage, Content: core.Text("hi")})
	require.NoError(t, s.SaveChunk(ctx, thread.ID, chunk))

	state := core.NewState(thread.ID, []core.Chunk{chunk}, nil)
	require.NoError(t, s.SaveState(ctx, state))

	step := core.NewStep(thread.ID, core.NewUserMessageEvent("hi"), state.ID)
	require.NoError(t, s.SaveStep(ctx, step))
	require.NoError(t, s.PushEvent(ctx, thread.ID, core.NewUserMessageEvent("queued")))

	require.NoError(t, s.DeleteThread(ctx, thread.ID))

	_, err := s.GetThread(ctx, thread.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = s.GetState(ctx, state.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = s.GetChunk(ctx, chunk.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = s.GetStep(ctx, step.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	n, err := s.QueueLength(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInMemoryStore_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	thread := newThread()
	require.NoError(t, s.CreateThread(ctx, thread))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx core.Store) error {
		if err := tx.SaveChunk(ctx, thread.ID, core.NewChunk(core.ChunkSpec{Type: core.ChunkTypeUserMessage, Content: core.Text("x")})); err != nil {
			return err
		}
		if err := tx.UpdateThread(ctx, thread.WithCurrentState("elsewhere")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.CurrentStateID, got.CurrentStateID)
}

func TestInMemoryStore_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	thread := newThread()
	require.NoError(t, s.CreateThread(ctx, thread))

	state := core.NewState(thread.ID, nil, nil)
	err := s.WithTx(ctx, func(tx core.Store) error {
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}
		return tx.UpdateThread(ctx, thread.WithCurrentState(state.ID))
	})
	require.NoError(t, err)

	got, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, state.ID, got.CurrentStateID)
}
