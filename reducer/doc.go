// Package reducer maps domain events to declarative state operations. A
// Registry indexes pluggable reducers by event type; the built-in reducers
// cover conversation messages, tool/skill execution, subagent delegation,
// task lifecycle, todo tracking and explicit memory management. Reducers are
// pure functions; the engine owns all side effects.
package reducer
