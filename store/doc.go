// Package store provides core.Store implementations: a volatile in-memory
// store for tests and demos, and a SQLite-backed store (subpackage sqlite)
// for durable single-node deployments.
package store
