// Package compaction keeps agent memory bounded. A Manager classifies a
// state's working-history content against soft, hard and truncation token
// thresholds, summarizes compressible chunks through the model boundary, and
// falls back to destructive truncation when even compaction cannot keep the
// context inside budget.
package compaction
