// Package engine orchestrates agent threads over the event-sourced memory
// model. It serializes event dispatch per thread, persists every state
// transition with an audit step, drives model turns and tool calls, evaluates
// compaction thresholds after dispatch, and materializes subagent threads
// that run concurrently and report back through events.
package engine
