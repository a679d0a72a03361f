package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentmem/compaction"
	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/model"
	"github.com/hupe1980/agentmem/prompt"
	"github.com/hupe1980/agentmem/reducer"
	"github.com/hupe1980/agentmem/store"
	"github.com/hupe1980/agentmem/tool"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Store persists threads, states, chunks, steps and event queues.
	// Defaults to the in-memory implementation.
	Store core.Store
	// Reducers convert events into operations. Defaults to the built-in set.
	Reducers *reducer.Registry
	// Renderers turn chunks into prompt text. Defaults to the built-in set.
	Renderers *prompt.Registry
	// Tools are the callable capabilities exposed to the model. Defaults to
	// the spawn_subagent tool.
	Tools *tool.Registry
	// Model is the completion boundary used for turns and compaction.
	// Defaults to a mock model.
	Model model.Model
	// Compaction overrides (thresholds, tokenizer).
	Compaction []func(o *compaction.Options)
	// Observers receive runtime notifications. Panics are isolated.
	Observers []core.Observer
	// Logging services.
	Logger logging.Logger
}

// Engine orchestrates threads: it creates them from blueprints, serializes
// event dispatch per thread, keeps a read-through state cache, drives the
// auto-mode event loop and materializes subagent threads. Public methods are
// safe for concurrent use.
type Engine struct {
	store     core.Store
	reducers  *reducer.Registry
	builder   *prompt.Builder
	tools     *tool.Registry
	model     model.Model
	compactor *compaction.Manager
	observers []core.Observer
	logger    logging.Logger

	// per-thread dispatch serialization
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// single-writer read-through state cache, keyed by state id
	cacheMu sync.RWMutex
	cache   map[string]core.State

	// execution mode overrides
	modesMu sync.Mutex
	modes   map[string]core.ExecutionMode

	// auto-mode loops keyed by thread id
	loopsMu sync.Mutex
	loops   map[string]*loopHandle
}

// loopHandle tracks one running event loop: its cancel func and a channel
// closed when the loop exits.
type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Store:     store.NewInMemoryStore(),
		Reducers:  reducer.NewDefaultRegistry(),
		Renderers: prompt.NewRegistry(),
		Tools:     tool.NewRegistry(tool.NewSpawnSubagentTool()),
		Model:     model.NewMockModel("mock"),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	compactionOpts := append([]func(o *compaction.Options){func(o *compaction.Options) {
		o.Observers = opts.Observers
		o.Logger = opts.Logger
	}}, opts.Compaction...)

	return &Engine{
		store:       opts.Store,
		reducers:    opts.Reducers,
		builder:     prompt.NewBuilder(opts.Renderers),
		tools:       opts.Tools,
		model:       opts.Model,
		compactor:   compaction.NewManager(opts.Store, opts.Model, compactionOpts...),
		observers:   opts.Observers,
		logger:      opts.Logger,
		locks:       make(map[string]*sync.Mutex),
		cache:       make(map[string]core.State),
		modes:       make(map[string]core.ExecutionMode),
		loops:       make(map[string]*loopHandle),
	}
}

// Store exposes the configured persistence layer, mainly for inspection and
// tests.
func (e *Engine) Store() core.Store { return e.store }

// CreateThread instantiates a thread from a blueprint: its initial chunks, a
// working-history container and the initial state (provenance source
// "initialization"), persisted in one transaction.
func (e *Engine) CreateThread(ctx context.Context, bp core.Blueprint, parentThreadID string) (*core.Thread, error) {
	return e.createThread(ctx, bp, parentThreadID, nil)
}

func (e *Engine) createThread(ctx context.Context, bp core.Blueprint, parentThreadID string, extraChunks []core.Chunk) (*core.Thread, error) {
	if err := bp.Validate(); err != nil {
		return nil, err
	}

	chunks := make([]core.Chunk, 0, len(bp.InitialChunks)+len(extraChunks)+1)
	for _, spec := range bp.InitialChunks {
		chunks = append(chunks, core.NewChunk(spec.Spec()))
	}
	chunks = append(chunks, extraChunks...)
	chunks = append(chunks, core.NewChunk(core.ChunkSpec{
		Type:      core.ChunkTypeWorkingHistory,
		Retention: core.RetentionCritical,
	}))

	state := core.NewState("", chunks, &core.Provenance{
		Source:    core.SourceInitialization,
		Timestamp: time.Now().UTC(),
	})
	thread := core.NewThread(bp, state.ID, parentThreadID)
	state.ThreadID = thread.ID

	err := e.store.WithTx(ctx, func(tx core.Store) error {
		for _, c := range chunks {
			if err := tx.SaveChunk(ctx, thread.ID, c); err != nil {
				return err
			}
		}
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}
		return tx.CreateThread(ctx, thread)
	})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	e.cacheState(state)
	e.logger.Info("thread created", "thread_id", thread.ID, "blueprint", bp.Name, "parent_thread_id", parentThreadID)
	return thread, nil
}

// CheckCompactionNeeded classifies the thread's current state against the
// compaction thresholds. A blueprint with a non-zero AutoCompactThreshold
// overrides the hard threshold for its thread. Compaction never runs inline
// with dispatch; callers act on the returned usage out of band.
func (e *Engine) CheckCompactionNeeded(ctx context.Context, threadID string) (compaction.Usage, error) {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return compaction.Usage{}, err
	}
	state, err := e.currentState(ctx, thread)
	if err != nil {
		return compaction.Usage{}, err
	}
	return e.compactor.CheckTokenUsageAt(state, compaction.Thresholds{
		Hard: thread.Blueprint.AutoCompactThreshold,
	}), nil
}

// Compact runs compaction for the thread under its dispatch lock and refreshes
// the state cache.
func (e *Engine) Compact(ctx context.Context, threadID string) (core.State, error) {
	mu := e.threadLock(threadID)
	mu.Lock()
	defer mu.Unlock()

	next, err := e.compactor.ExecuteCompaction(ctx, threadID)
	if err != nil {
		return core.State{}, err
	}
	e.cacheState(next)
	return next, nil
}

// Truncate runs destructive truncation for the thread under its dispatch lock
// and refreshes the state cache.
func (e *Engine) Truncate(ctx context.Context, threadID string) (core.State, error) {
	mu := e.threadLock(threadID)
	mu.Lock()
	defer mu.Unlock()

	next, err := e.compactor.ExecuteTruncation(ctx, threadID)
	if err != nil {
		return core.State{}, err
	}
	e.cacheState(next)
	return next, nil
}

// BuildContext renders the thread's current state into LLM-ready messages.
func (e *Engine) BuildContext(ctx context.Context, threadID string, opts prompt.Options) (prompt.Result, error) {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return prompt.Result{}, err
	}
	state, err := e.currentState(ctx, thread)
	if err != nil {
		return prompt.Result{}, err
	}
	return e.builder.Build(state, opts), nil
}

// CurrentState returns the thread's current state, preferring the cache.
func (e *Engine) CurrentState(ctx context.Context, threadID string) (core.State, error) {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return core.State{}, err
	}
	return e.currentState(ctx, thread)
}

// SetExecutionMode switches the thread between auto and stepping.
func (e *Engine) SetExecutionMode(threadID string, mode core.ExecutionMode) {
	e.modesMu.Lock()
	defer e.modesMu.Unlock()
	e.modes[threadID] = mode
}

// threadLock returns the dispatch mutex for a thread, creating it lazily.
func (e *Engine) threadLock(threadID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[threadID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[threadID] = mu
	}
	return mu
}

// currentState reads the thread's current state through the cache.
func (e *Engine) currentState(ctx context.Context, thread *core.Thread) (core.State, error) {
	e.cacheMu.RLock()
	cached, ok := e.cache[thread.CurrentStateID]
	e.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}
	state, err := e.store.GetState(ctx, thread.CurrentStateID)
	if err != nil {
		return core.State{}, err
	}
	e.cacheState(state)
	return state, nil
}

// cacheState caches the state and evicts its predecessor, keeping one entry
// per thread. Historical states stay reachable through the store.
func (e *Engine) cacheState(state core.State) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if prev := state.Metadata.PreviousStateID; prev != "" {
		delete(e.cache, prev)
	}
	e.cache[state.ID] = state
}

// mode returns the thread's effective execution mode.
func (e *Engine) mode(thread *core.Thread) core.ExecutionMode {
	e.modesMu.Lock()
	defer e.modesMu.Unlock()
	if m, ok := e.modes[thread.ID]; ok {
		return m
	}
	return thread.Blueprint.Mode()
}

// notify fans out one observer callback, isolating panics so a broken
// observer cannot affect runtime correctness.
func (e *Engine) notify(fn func(o core.Observer)) {
	for _, o := range e.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Warn("observer panic", "panic", fmt.Sprintf("%v", r))
				}
			}()
			fn(o)
		}()
	}
}
