package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/core"
)

func chunkOf(t core.ChunkType, text string) core.Chunk {
	return core.NewChunk(core.ChunkSpec{Type: t, Content: core.Text(text)})
}

func stateOf(chunks ...core.Chunk) core.State {
	return core.NewState("t1", chunks, nil)
}

func TestBuild_ConsecutiveSameRoleCollapse(t *testing.T) {
	state := stateOf(
		chunkOf(core.ChunkTypeUserMessage, "one"),
		chunkOf(core.ChunkTypeUserMessage, "two"),
		chunkOf(core.ChunkTypeAssistantMessage, "three"),
	)
	result := NewBuilder(nil).Build(state, Options{})

	require.Len(t, result.Messages, 2)
	assert.Equal(t, RoleUser, result.Messages[0].Role)
	assert.Equal(t, "one\n\ntwo", result.Messages[0].Text)
	assert.Equal(t, RoleAssistant, result.Messages[1].Role)
	assert.LessOrEqual(t, len(result.Messages), 3, "message count never exceeds filtered chunk count")
}

func TestBuild_PartitionIsExact(t *testing.T) {
	chunks := []core.Chunk{
		chunkOf(core.ChunkTypeSystem, "sys"),
		chunkOf(core.ChunkTypeUserMessage, "u1"),
		chunkOf(core.ChunkTypeAssistantMessage, "a1"),
		chunkOf(core.ChunkTypeUserMessage, "u2"),
	}
	state := stateOf(chunks...)
	result := NewBuilder(nil).Build(state, Options{})

	seen := map[string]int{}
	for _, id := range result.IncludedChunkIDs {
		seen[id]++
	}
	for _, id := range result.ExcludedChunkIDs {
		seen[id]++
	}
	require.Len(t, seen, len(chunks))
	for id, n := range seen {
		assert.Equal(t, 1, n, "chunk %s must appear exactly once across the partition", id)
	}
}

func TestBuild_TokenBudgetExcludesWholeGroupAndContinues(t *testing.T) {
	big := strings.Repeat("x", 4000) // ~1000 tokens
	state := stateOf(
		chunkOf(core.ChunkTypeUserMessage, "short"),
		chunkOf(core.ChunkTypeAssistantMessage, big),
		chunkOf(core.ChunkTypeUserMessage, "tail"),
	)
	result := NewBuilder(nil).Build(state, Options{MaxTokens: 50})

	// the oversized assistant group is dropped whole, the trailing user
	// group still makes it in
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "short", result.Messages[0].Text)
	assert.Equal(t, "tail", result.Messages[1].Text)
	assert.Len(t, result.ExcludedChunkIDs, 1)
}

func TestBuild_FiltersAndContainerSkipped(t *testing.T) {
	user := chunkOf(core.ChunkTypeUserMessage, "hello")
	system := chunkOf(core.ChunkTypeSystem, "rules")
	toolResult := core.NewChunk(core.ChunkSpec{
		Type:    core.ChunkTypeToolResult,
		Content: core.Text("out"),
		Custom:  map[string]any{"name": "search", "success": true},
	})
	container := core.NewChunk(core.ChunkSpec{
		Type:     core.ChunkTypeWorkingHistory,
		ChildIDs: []string{user.ID},
	})
	state := stateOf(container, system, user, toolResult)

	result := NewBuilder(nil).Build(state, Options{ExcludeSystem: true, ExcludeEnvironment: true})
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "hello", result.Messages[0].Text)
	assert.NotContains(t, result.IncludedChunkIDs, container.ID)
	assert.NotContains(t, result.ExcludedChunkIDs, container.ID)
}

func TestBuild_OnlyChunkIDs(t *testing.T) {
	a := chunkOf(core.ChunkTypeUserMessage, "a")
	b := chunkOf(core.ChunkTypeUserMessage, "b")
	state := stateOf(a, b)

	result := NewBuilder(nil).Build(state, Options{OnlyChunkIDs: []string{b.ID}})
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "b", result.Messages[0].Text)
	assert.Equal(t, []string{b.ID}, result.IncludedChunkIDs)
}

type shoutRenderer struct{}

func (shoutRenderer) CanRender(c core.Chunk) bool { return c.Type == core.ChunkTypeUserMessage }
func (shoutRenderer) Role(core.Chunk) string      { return RoleUser }
func (shoutRenderer) Render(c core.Chunk) string {
	return strings.ToUpper(core.ContentText(c.Content))
}

func TestBuild_CustomRendererTakesPriority(t *testing.T) {
	registry := NewRegistry()
	registry.Register(shoutRenderer{})
	state := stateOf(chunkOf(core.ChunkTypeUserMessage, "quiet"))

	result := NewBuilder(registry).Build(state, Options{})
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "QUIET", result.Messages[0].Text)
}

func TestBuild_GenericFallbackRendersUnknownShapes(t *testing.T) {
	raw := core.NewChunk(core.ChunkSpec{
		Type:    core.ChunkType("mystery"),
		Content: core.RawContent{Fields: map[string]any{"x": 1}},
	})
	state := stateOf(raw)

	result := NewBuilder(nil).Build(state, Options{})
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0].Text, raw.ID)
	assert.Contains(t, result.Messages[0].Text, "mystery")
}

func TestBuild_EmptyState(t *testing.T) {
	result := NewBuilder(nil).Build(stateOf(), Options{MaxTokens: 100})
	assert.Empty(t, result.Messages)
	assert.Empty(t, result.IncludedChunkIDs)
	assert.Empty(t, result.ExcludedChunkIDs)
	assert.Zero(t, result.TotalTokens)
}
