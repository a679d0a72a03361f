// Package core provides the foundational domain types and boundaries of the
// agentmem runtime. It defines the core abstractions for:
//
//   - Chunks (immutable units of agent memory with retention policies)
//   - States (immutable, versioned snapshots of all chunks for a thread)
//   - Threads (durable identity of one agent run, including subagent links)
//   - Operations (declarative, replayable state mutations and their executor)
//   - Agent events (the tagged union of everything that can happen to a thread)
//   - Steps (audit records of one event-processing cycle)
//   - Pluggable boundaries for storage, observation and token counting
//
// The package intentionally keeps implementation concerns (persistence, engine
// orchestration, concrete model providers) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
