package compaction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/agentmem/core"
)

const summarySystemPrompt = `You compress an AI agent's working memory. Write a dense summary of the ` +
	`entries below that preserves every fact, decision, open question and ` +
	`outstanding action the agent needs to continue its task. Do not repeat ` +
	`content listed under "Retained content"; it stays in memory verbatim. ` +
	`Respond with the summary text only.`

// buildCompactionPrompt renders the three-section summarization request:
// retained CRITICAL conversation content, surrounding context, and the
// compressible entries themselves.
func buildCompactionPrompt(state core.State, compact []child) string {
	var b strings.Builder

	b.WriteString("## Retained content (stays in memory, do not repeat)\n")
	inCompact := make(map[string]bool, len(compact))
	for _, c := range compact {
		inCompact[c.chunk.ID] = true
	}
	retained := 0
	for _, c := range state.OrderedChunks() {
		if inCompact[c.ID] || c.Retention != core.RetentionCritical || !core.ConversationChunkTypes[c.Type] {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", c.Type, core.ContentText(c.Content))
		retained++
	}
	if retained == 0 {
		b.WriteString("(none)\n")
	}

	b.WriteString("\n## Context\n")
	if goal := taskGoal(state); goal != "" {
		fmt.Fprintf(&b, "Task goal: %s\n", goal)
	}
	if prior := priorSummary(state, inCompact); prior != "" {
		fmt.Fprintf(&b, "Prior progress summary: %s\n", prior)
	}
	for _, c := range state.ChunksByType(core.ChunkTypeSystem) {
		fmt.Fprintf(&b, "System: %s\n", core.ContentText(c.Content))
	}

	b.WriteString("\n## Entries to summarize\n")
	for _, c := range compact {
		fmt.Fprintf(&b, "[%s%s %s%s] %s\n",
			c.chunk.Type, subtypeTag(c.chunk),
			c.chunk.Metadata.CreatedAt.Format(time.RFC3339),
			customTags(c.chunk),
			core.ContentText(c.chunk.Content))
	}
	return b.String()
}

// taskGoal extracts the task goal from the earliest CRITICAL user message,
// falling back to the earliest user message of any retention.
func taskGoal(state core.State) string {
	var fallback string
	for _, c := range state.ChunksByType(core.ChunkTypeUserMessage) {
		if c.Retention == core.RetentionCritical {
			return core.ContentText(c.Content)
		}
		if fallback == "" {
			fallback = core.ContentText(c.Content)
		}
	}
	return fallback
}

// priorSummary returns the text of the latest compacted summary that is not
// itself being compacted again.
func priorSummary(state core.State, inCompact map[string]bool) string {
	summaries := state.ChunksByType(core.ChunkTypeCompactedSummary)
	kept := summaries[:0]
	for _, c := range summaries {
		if !inCompact[c.ID] {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Metadata.CreatedAt.Before(kept[j].Metadata.CreatedAt)
	})
	return core.ContentText(kept[len(kept)-1].Content)
}

func subtypeTag(c core.Chunk) string {
	if c.Subtype == "" {
		return ""
	}
	return "/" + c.Subtype
}

// customTags renders the chunk's custom metadata as deterministic key=value
// pairs so the model can see tool names, success flags and spawn ids.
func customTags(c core.Chunk) string {
	if len(c.Metadata.Custom) == 0 {
		return ""
	}
	keys := make([]string, 0, len(c.Metadata.Custom))
	for k := range c.Metadata.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, c.Metadata.Custom[k])
	}
	return b.String()
}
