// Package engine is the session boundary around one AppState.
//
// Every mutation runs through Engine.Mutate, which holds the single
// in-flight token for the whole operation:
//
//  1. the current state is cloned
//  2. the operation runs against the clone
//  3. on success the clone replaces the state and the revision advances
//  4. the snapshot is written to the key-value store
//  5. observers are notified with the new revision
//
// A failing operation leaves the state untouched. Readers get deep
// copies through Snapshot, so nothing outside the engine can alias live
// records.
//
// Imports are queued as tasks and applied one at a time by Run or
// Drain. Each task sees the state left by the task before it.
//
// CRITICAL PATTERNS:
//
// Single writer: state is only replaced inside Mutate, under e.mu.
//
// Revision counter: every committed mutation takes exactly one value
// from Revision.Next. Observers compare revisions, never wall-clock time.
package engine
