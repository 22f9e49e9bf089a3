// Package store persists serialized state snapshots under string keys.
//
// Two KV implementations are provided:
//   - Store: a SQLite file (one row per key in table kv)
//   - Memory: a process-local map
//
// Fallback wraps a primary KV and degrades to Memory the first time the
// primary fails. After that every call is served from memory for the rest
// of the process and Status reports the reason.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Each Put bumps the row's revision so external tools can tell snapshots
// apart without decoding them.
package store
