// Package memory defines the typed memory record model and the Store contract
// the memory tools are bridged to, plus an in-memory implementation.
//
// Records come in three types: session (current conversation context),
// persistent (facts to always remember) and archival (reference material).
// Stores must provide insert-with-generated-id, case-insensitive relevance
// ranked text search with an optional type filter, filtered listing and
// idempotent delete-by-id.
//
// Additional backends (the sqlite store under store/sqlite, a document
// database, a vector index) can be added without changing calling code; only
// the wiring layer decides which implementation to instantiate.
package memory
