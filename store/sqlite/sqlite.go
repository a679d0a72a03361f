// Package sqlite provides a durable, single-node core.Store backed by SQLite
// via the pure-Go modernc.org/sqlite driver. Entities are stored as JSON
// payload columns keyed by their runtime ids; queued events get ULID row ids
// so FIFO order falls out of the primary key.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentmem/core"
)

// querier abstracts *sql.DB and *sql.Tx so store methods run unchanged inside
// a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements core.Store on a SQLite database.
type Store struct {
	db *sql.DB
	q  querier
}

var _ core.Store = (*Store)(nil)

// New opens or creates a SQLite database at the given path and migrates the
// schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id               TEXT PRIMARY KEY,
		parent_thread_id TEXT,
		data             TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_threads_parent ON threads(parent_thread_id);

	CREATE TABLE IF NOT EXISTS states (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL,
		data       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_states_thread ON states(thread_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id        TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		data      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_thread ON chunks(thread_id);

	CREATE TABLE IF NOT EXISTS steps (
		id         TEXT PRIMARY KEY,
		thread_id  TEXT NOT NULL,
		data       TEXT NOT NULL,
		started_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_steps_thread ON steps(thread_id, started_at);

	CREATE TABLE IF NOT EXISTS events (
		id        TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		data      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_thread ON events(thread_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateThread inserts the thread.
func (s *Store) CreateThread(ctx context.Context, t *core.Thread) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO threads (id, parent_thread_id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.ParentThreadID, string(data), t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// GetThread loads the thread.
func (s *Store) GetThread(ctx context.Context, id string) (*core.Thread, error) {
	var data string
	err := s.q.QueryRowContext(ctx, `SELECT data FROM threads WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "thread", ID: id}
	}
	if err != nil {
		return nil, err
	}
	var t core.Thread
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("unmarshal thread %s: %w", id, err)
	}
	return &t, nil
}

// UpdateThread overwrites an existing thread.
func (s *Store) UpdateThread(ctx context.Context, t *core.Thread) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE threads SET data = ?, updated_at = ? WHERE id = ?`,
		string(data), t.UpdatedAt.Format(time.RFC3339Nano), t.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &core.NotFoundError{Kind: "thread", ID: t.ID}
	}
	return nil
}

// DeleteThread removes the thread and cascades to its states, chunks, steps
// and queued events.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx core.Store) error {
		txs := tx.(*Store)
		for _, stmt := range []string{
			`DELETE FROM events WHERE thread_id = ?`,
			`DELETE FROM steps WHERE thread_id = ?`,
			`DELETE FROM chunks WHERE thread_id = ?`,
			`DELETE FROM states WHERE thread_id = ?`,
			`DELETE FROM threads WHERE id = ?`,
		} {
			if _, err := txs.q.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveState inserts or replaces the state.
func (s *Store) SaveState(ctx context.Context, st core.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO states (id, thread_id, data, created_at) VALUES (?, ?, ?, ?)`,
		st.ID, st.ThreadID, string(data), st.Metadata.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// GetState loads the state.
func (s *Store) GetState(ctx context.Context, id string) (core.State, error) {
	var data string
	err := s.q.QueryRowContext(ctx, `SELECT data FROM states WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.State{}, &core.NotFoundError{Kind: "state", ID: id}
	}
	if err != nil {
		return core.State{}, err
	}
	var st core.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return core.State{}, fmt.Errorf("unmarshal state %s: %w", id, err)
	}
	return st, nil
}

// SaveChunk inserts or replaces the chunk scoped to a thread.
func (s *Store) SaveChunk(ctx context.Context, threadID string, c core.Chunk) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, thread_id, data) VALUES (?, ?, ?)`,
		c.ID, threadID, string(data))
	return err
}

// GetChunk loads the chunk.
func (s *Store) GetChunk(ctx context.Context, id string) (core.Chunk, error) {
	var data string
	err := s.q.QueryRowContext(ctx, `SELECT data FROM chunks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Chunk{}, &core.NotFoundError{Kind: "chunk", ID: id}
	}
	if err != nil {
		return core.Chunk{}, err
	}
	var c core.Chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return core.Chunk{}, fmt.Errorf("unmarshal chunk %s: %w", id, err)
	}
	return c, nil
}

// SaveStep inserts or replaces the step.
func (s *Store) SaveStep(ctx context.Context, step core.Step) error {
	data, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO steps (id, thread_id, data, started_at) VALUES (?, ?, ?, ?)`,
		step.ID, step.ThreadID, string(data), step.StartedAt.Format(time.RFC3339Nano))
	return err
}

// GetStep loads the step.
func (s *Store) GetStep(ctx context.Context, id string) (core.Step, error) {
	var data string
	err := s.q.QueryRowContext(ctx, `SELECT data FROM steps WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Step{}, &core.NotFoundError{Kind: "step", ID: id}
	}
	if err != nil {
		return core.Step{}, err
	}
	var step core.Step
	if err := json.Unmarshal([]byte(data), &step); err != nil {
		return core.Step{}, fmt.Errorf("unmarshal step %s: %w", id, err)
	}
	return step, nil
}

// ListSteps returns a thread's steps in start order.
func (s *Store) ListSteps(ctx context.Context, threadID string) ([]core.Step, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT data FROM steps WHERE thread_id = ? ORDER BY started_at`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Step
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var step core.Step
		if err := json.Unmarshal([]byte(data), &step); err != nil {
			return nil, fmt.Errorf("unmarshal step: %w", err)
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

// PushEvent appends the event to the thread's queue. The ULID row id encodes
// arrival order.
func (s *Store) PushEvent(ctx context.Context, threadID string, ev core.AgentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO events (id, thread_id, data) VALUES (?, ?, ?)`,
		ulid.Make().String(), threadID, string(data))
	return err
}

// PopEvent removes and returns the head of the queue, nil when empty. Each
// thread has a single consumer (its event loop), so select-then-delete does
// not race.
func (s *Store) PopEvent(ctx context.Context, threadID string) (*core.AgentEvent, error) {
	var rowID, data string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, data FROM events WHERE thread_id = ? ORDER BY id LIMIT 1`, threadID).Scan(&rowID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, rowID); err != nil {
		return nil, err
	}
	var ev core.AgentEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &ev, nil
}

// PeekEvent returns the head of the queue without removing it, nil when
// empty.
func (s *Store) PeekEvent(ctx context.Context, threadID string) (*core.AgentEvent, error) {
	var data string
	err := s.q.QueryRowContext(ctx,
		`SELECT data FROM events WHERE thread_id = ? ORDER BY id LIMIT 1`, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ev core.AgentEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &ev, nil
}

// ClearEvents drops every queued event for the thread.
func (s *Store) ClearEvents(ctx context.Context, threadID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM events WHERE thread_id = ?`, threadID)
	return err
}

// QueueLength reports the number of queued events for the thread.
func (s *Store) QueueLength(ctx context.Context, threadID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE thread_id = ?`, threadID).Scan(&n)
	return n, err
}

// WithTx runs fn inside one SQLite transaction. Nested calls reuse the
// enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx core.Store) error) error {
	if _, alreadyTx := s.q.(*sql.Tx); alreadyTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// ListThreads returns every stored thread, roots first. Used by inspection
// tooling.
func (s *Store) ListThreads(ctx context.Context) ([]*core.Thread, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT data FROM threads ORDER BY parent_thread_id, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Thread
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t core.Thread
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshal thread: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
