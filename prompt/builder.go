package prompt

import "github.com/hupe1980/agentmem/core"

// Message is one role-grouped entry of the rendered context.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Options filter and bound a context build.
type Options struct {
	// MaxTokens bounds the rendered context. 0 means unbounded. Budgeting is
	// applied at group granularity: a group that would cross the budget is
	// excluded whole and building continues with the next group.
	MaxTokens int
	// Tokenizer counts tokens exactly; nil falls back to the length/4
	// estimate.
	Tokenizer core.Tokenizer
	// ExcludeSystem drops system chunks.
	ExcludeSystem bool
	// ExcludeEnvironment drops tool/skill/delegation chunks.
	ExcludeEnvironment bool
	// ExcludeTypes drops the listed chunk types.
	ExcludeTypes []core.ChunkType
	// OnlyChunkIDs, when non-empty, restricts the build to the listed ids.
	OnlyChunkIDs []string
}

// Result is the rendered context plus the exact partition of the filtered
// chunk ids into included and excluded sets.
type Result struct {
	Messages         []Message `json:"messages"`
	IncludedChunkIDs []string  `json:"included_chunk_ids"`
	ExcludedChunkIDs []string  `json:"excluded_chunk_ids"`
	TotalTokens      int       `json:"total_tokens"`
}

// Builder renders an ordered chunk sequence into role-grouped, token-budgeted
// messages.
type Builder struct {
	renderers *Registry
}

// NewBuilder constructs a builder over a renderer registry (nil gets the
// built-in registry).
func NewBuilder(renderers *Registry) *Builder {
	if renderers == nil {
		renderers = NewRegistry()
	}
	return &Builder{renderers: renderers}
}

// group is a run of consecutive chunks resolving to the same role.
type group struct {
	role     string
	chunkIDs []string
	texts    []string
	tokens   int
}

// Build renders the state per the options. Every chunk id in the filtered
// input ends up in exactly one of IncludedChunkIDs or ExcludedChunkIDs;
// working-history containers themselves are never rendered (their children
// are ordinary state chunks).
func (b *Builder) Build(state core.State, opts Options) Result {
	filtered := b.filter(state, opts)
	groups := b.groupByRole(filtered, opts.Tokenizer)

	result := Result{
		IncludedChunkIDs: []string{},
		ExcludedChunkIDs: []string{},
	}
	for _, g := range groups {
		if opts.MaxTokens > 0 && result.TotalTokens+g.tokens > opts.MaxTokens {
			// exclude the whole group, keep scanning later groups
			result.ExcludedChunkIDs = append(result.ExcludedChunkIDs, g.chunkIDs...)
			continue
		}
		result.TotalTokens += g.tokens
		result.IncludedChunkIDs = append(result.IncludedChunkIDs, g.chunkIDs...)
		result.Messages = append(result.Messages, Message{Role: g.role, Text: joinTexts(g.texts)})
	}
	return result
}

func (b *Builder) filter(state core.State, opts Options) []core.Chunk {
	exclude := make(map[core.ChunkType]bool, len(opts.ExcludeTypes))
	for _, t := range opts.ExcludeTypes {
		exclude[t] = true
	}
	var only map[string]bool
	if len(opts.OnlyChunkIDs) > 0 {
		only = make(map[string]bool, len(opts.OnlyChunkIDs))
		for _, id := range opts.OnlyChunkIDs {
			only[id] = true
		}
	}

	var out []core.Chunk
	for _, c := range state.OrderedChunks() {
		if c.Type == core.ChunkTypeWorkingHistory {
			continue
		}
		if opts.ExcludeSystem && c.Type == core.ChunkTypeSystem {
			continue
		}
		if opts.ExcludeEnvironment && core.EnvironmentChunkTypes[c.Type] {
			continue
		}
		if exclude[c.Type] {
			continue
		}
		if only != nil && !only[c.ID] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *Builder) groupByRole(chunks []core.Chunk, tok core.Tokenizer) []group {
	var groups []group
	for _, c := range chunks {
		renderer := b.renderers.Resolve(c)
		role := renderer.Role(c)
		text := renderer.Render(c)
		tokens := core.EstimateTokens(text, tok)

		if n := len(groups); n > 0 && groups[n-1].role == role {
			g := &groups[n-1]
			g.chunkIDs = append(g.chunkIDs, c.ID)
			g.texts = append(g.texts, text)
			g.tokens += tokens
			continue
		}
		groups = append(groups, group{
			role:     role,
			chunkIDs: []string{c.ID},
			texts:    []string{text},
			tokens:   tokens,
		})
	}
	return groups
}

func joinTexts(texts []string) string {
	out := ""
	for i, t := range texts {
		if i > 0 {
			out += "\n\n"
		}
		out += t
	}
	return out
}
