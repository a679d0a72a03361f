package compaction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/model"
)

// Default token thresholds. Values are estimated tokens over the rendered
// text of the working-history children.
const (
	DefaultSoftThreshold       = 50_000
	DefaultHardThreshold       = 80_000
	DefaultTruncationThreshold = 100_000
)

// Options holds dependency + configuration overrides passed to NewManager().
type Options struct {
	// SoftThreshold is the token count at which compaction is suggested.
	SoftThreshold int
	// HardThreshold is the token count at which compaction is forced.
	HardThreshold int
	// TruncationThreshold is the token count at which destructive truncation
	// becomes necessary.
	TruncationThreshold int
	// Tokenizer counts tokens exactly; nil falls back to the length/4
	// estimate.
	Tokenizer core.Tokenizer
	// Observers receive compaction lifecycle notifications.
	Observers []core.Observer
	// Logging services.
	Logger logging.Logger
}

// Usage is the classification of a state's working-history children against
// the configured thresholds.
type Usage struct {
	// TotalTokens is the estimated token sum over all children.
	TotalTokens int `json:"total_tokens"`
	// CompressibleTokens is the estimated token sum over compressible
	// children only.
	CompressibleTokens int `json:"compressible_tokens"`
	// SuggestCompaction is set when TotalTokens reaches the soft threshold.
	SuggestCompaction bool `json:"suggest_compaction"`
	// ForceCompaction is set when TotalTokens reaches the hard threshold and
	// at least one compressible chunk exists.
	ForceCompaction bool `json:"force_compaction"`
	// NeedsTruncation is set when TotalTokens reaches the truncation
	// threshold.
	NeedsTruncation bool `json:"needs_truncation"`
	// ChunksToCompact lists the compressible child ids in sequence order.
	ChunksToCompact []string `json:"chunks_to_compact,omitempty"`
	// ChunksToTruncate lists the oldest compressible children whose removal
	// brings the total back under the truncation threshold.
	ChunksToTruncate []string `json:"chunks_to_truncate,omitempty"`
}

// Manager classifies token usage against soft/hard/truncation thresholds and
// collapses compressible working-history content into model-produced
// summaries. It never runs inline with event dispatch; callers check usage
// after dispatch and trigger compaction out of band.
type Manager struct {
	softThreshold       int
	hardThreshold       int
	truncationThreshold int

	tokenizer core.Tokenizer
	store     core.Store
	model     model.Model
	observers []core.Observer
	logger    logging.Logger
}

// NewManager constructs a Manager over a store and a completion boundary with
// optional overrides.
func NewManager(store core.Store, m model.Model, optFns ...func(o *Options)) *Manager {
	opts := Options{
		SoftThreshold:       DefaultSoftThreshold,
		HardThreshold:       DefaultHardThreshold,
		TruncationThreshold: DefaultTruncationThreshold,
		Logger:              logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		softThreshold:       opts.SoftThreshold,
		hardThreshold:       opts.HardThreshold,
		truncationThreshold: opts.TruncationThreshold,
		tokenizer:           opts.Tokenizer,
		store:               store,
		model:               m,
		observers:           opts.Observers,
		logger:              opts.Logger,
	}
}

// child pairs a working-history member with its token estimate.
type child struct {
	chunk        core.Chunk
	tokens       int
	compressible bool
}

// Thresholds carries per-thread threshold overrides. A zero field keeps the
// manager's configured value.
type Thresholds struct {
	Soft       int
	Hard       int
	Truncation int
}

// CheckTokenUsage classifies the state's working-history children against
// the manager's configured thresholds. A state without a working-history
// container yields a zero Usage.
func (m *Manager) CheckTokenUsage(state core.State) Usage {
	return m.CheckTokenUsageAt(state, Thresholds{})
}

// CheckTokenUsageAt classifies like CheckTokenUsage with per-thread
// threshold overrides. A blueprint's auto-compact threshold enters as the
// hard threshold for its thread.
func (m *Manager) CheckTokenUsageAt(state core.State, t Thresholds) Usage {
	soft, hard, truncation := m.softThreshold, m.hardThreshold, m.truncationThreshold
	if t.Soft > 0 {
		soft = t.Soft
	}
	if t.Hard > 0 {
		hard = t.Hard
	}
	if t.Truncation > 0 {
		truncation = t.Truncation
	}

	children := m.classify(state)
	if children == nil {
		return Usage{}
	}

	var usage Usage
	for _, c := range children {
		usage.TotalTokens += c.tokens
		if c.compressible {
			usage.CompressibleTokens += c.tokens
			usage.ChunksToCompact = append(usage.ChunksToCompact, c.chunk.ID)
		}
	}

	usage.SuggestCompaction = usage.TotalTokens >= soft
	usage.ForceCompaction = usage.TotalTokens >= hard && len(usage.ChunksToCompact) > 0
	usage.NeedsTruncation = usage.TotalTokens >= truncation

	if usage.NeedsTruncation {
		usage.ChunksToTruncate = m.selectTruncation(children, usage.TotalTokens, truncation)
	}
	return usage
}

// classify resolves the working-history children in sequence order. Returns
// nil when the state has no container.
func (m *Manager) classify(state core.State) []child {
	container, ok := state.WorkingHistory()
	if !ok {
		return nil
	}
	children := make([]child, 0, len(container.ChildIDs))
	for _, id := range container.ChildIDs {
		c, ok := state.Chunk(id)
		if !ok {
			continue
		}
		children = append(children, child{
			chunk:        c,
			tokens:       core.ChunkTokens(c, m.tokenizer),
			compressible: core.ConversationChunkTypes[c.Type] && c.Retention.Compressible(),
		})
	}
	return children
}

// selectTruncation picks the oldest compressible children (by creation time)
// until removing them would bring the total back under the truncation
// threshold.
func (m *Manager) selectTruncation(children []child, total, truncationThreshold int) []string {
	compressible := make([]child, 0, len(children))
	for _, c := range children {
		if c.compressible {
			compressible = append(compressible, c)
		}
	}
	sort.SliceStable(compressible, func(i, j int) bool {
		return compressible[i].chunk.Metadata.CreatedAt.Before(compressible[j].chunk.Metadata.CreatedAt)
	})

	var ids []string
	remaining := total
	for _, c := range compressible {
		if remaining < truncationThreshold {
			break
		}
		ids = append(ids, c.chunk.ID)
		remaining -= c.tokens
	}
	return ids
}

// ExecuteCompaction collapses the thread's compressible working-history
// children into a single model-produced summary chunk and commits the derived
// state. It fails with a NotFoundError when the thread or its current state
// is missing, and with ErrNoCompactableContent before any model call when the
// state has no container or no compressible children. Model errors propagate
// unmodified.
func (m *Manager) ExecuteCompaction(ctx context.Context, threadID string) (core.State, error) {
	thread, err := m.store.GetThread(ctx, threadID)
	if err != nil {
		return core.State{}, err
	}
	state, err := m.store.GetState(ctx, thread.CurrentStateID)
	if err != nil {
		return core.State{}, err
	}

	container, ok := state.WorkingHistory()
	if !ok {
		return core.State{}, core.ErrNoCompactableContent
	}
	children := m.classify(state)
	var compact []child
	for _, c := range children {
		if c.compressible {
			compact = append(compact, c)
		}
	}
	if len(compact) == 0 {
		return core.State{}, core.ErrNoCompactableContent
	}

	ids := make([]string, len(compact))
	tokensBefore := 0
	for i, c := range compact {
		ids[i] = c.chunk.ID
		tokensBefore += c.tokens
	}

	for _, o := range m.observers {
		o.OnCompactionStarted(threadID, ids)
	}
	m.logger.Info("compaction started", "thread_id", threadID, "chunk_count", len(ids), "tokens_before", tokensBefore)

	resp, err := m.model.Complete(ctx, model.Request{
		Messages: []model.Message{
			{Role: "system", Text: summarySystemPrompt},
			{Role: "user", Text: buildCompactionPrompt(state, compact)},
		},
	})
	if err != nil {
		return core.State{}, err
	}

	summary := core.NewChunk(core.ChunkSpec{
		Type:      core.ChunkTypeCompactedSummary,
		Content:   core.Text(resp.Content),
		Retention: core.RetentionCompressible,
		ParentIDs: ids,
		Custom: map[string]any{
			"compacted_at":    time.Now().UTC().Format(time.RFC3339),
			"compacted_count": len(ids),
			"tokens_before":   tokensBefore,
			"usage_tokens":    resp.Usage.TotalTokens,
		},
	})
	newContainer := core.ReplaceChildren(container, ids, summary.ID)

	ops := []core.Operation{
		core.NewBatchReplaceOperation(ids, summary.ID),
		core.NewUpdateOperation(container.ID, newContainer.ID),
	}
	next, _, err := core.ApplyOperations(state, ops, []core.Chunk{summary, newContainer}, &core.Provenance{
		Source:    core.SourceCompaction,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return core.State{}, fmt.Errorf("apply compaction: %w", err)
	}

	if err := m.commit(ctx, thread, next, []core.Chunk{summary, newContainer}); err != nil {
		return core.State{}, err
	}

	for _, o := range m.observers {
		o.OnCompactionCompleted(threadID, next, ids)
	}
	m.logger.Info("compaction completed", "thread_id", threadID, "summary_chunk_id", summary.ID, "state_id", next.ID)
	return next, nil
}

// ExecuteTruncation destructively deletes the oldest compressible
// working-history children until the total estimated tokens fall back under
// the truncation threshold. No model call is made and the deleted content is
// not recoverable from the resulting state (lineage remains in the state
// history). A state that does not need truncation is returned unchanged.
func (m *Manager) ExecuteTruncation(ctx context.Context, threadID string) (core.State, error) {
	thread, err := m.store.GetThread(ctx, threadID)
	if err != nil {
		return core.State{}, err
	}
	state, err := m.store.GetState(ctx, thread.CurrentStateID)
	if err != nil {
		return core.State{}, err
	}

	usage := m.CheckTokenUsage(state)
	if !usage.NeedsTruncation || len(usage.ChunksToTruncate) == 0 {
		return state, nil
	}

	container, ok := state.WorkingHistory()
	if !ok {
		return state, nil
	}
	newContainer := core.RemoveChildren(container, usage.ChunksToTruncate)

	ops := make([]core.Operation, 0, len(usage.ChunksToTruncate)+1)
	for _, id := range usage.ChunksToTruncate {
		ops = append(ops, core.NewDeleteOperation(id))
	}
	ops = append(ops, core.NewUpdateOperation(container.ID, newContainer.ID))

	next, _, err := core.ApplyOperations(state, ops, []core.Chunk{newContainer}, &core.Provenance{
		Source:    core.SourceTruncation,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return core.State{}, fmt.Errorf("apply truncation: %w", err)
	}

	if err := m.commit(ctx, thread, next, []core.Chunk{newContainer}); err != nil {
		return core.State{}, err
	}

	m.logger.Warn("truncation executed", "thread_id", threadID, "deleted_chunks", len(usage.ChunksToTruncate), "state_id", next.ID)
	return next, nil
}

// commit persists the derived state, its new chunks and the advanced thread
// pointer in one transaction.
func (m *Manager) commit(ctx context.Context, thread *core.Thread, next core.State, newChunks []core.Chunk) error {
	return m.store.WithTx(ctx, func(tx core.Store) error {
		for _, c := range newChunks {
			if err := tx.SaveChunk(ctx, thread.ID, c); err != nil {
				return err
			}
		}
		if err := tx.SaveState(ctx, next); err != nil {
			return err
		}
		return tx.UpdateThread(ctx, thread.WithCurrentState(next.ID))
	})
}
