// Package session defines chat sessions, their persisted messages and the
// Store contract, plus an in-memory implementation.
//
// Running token/cost totals live on the session and are only ever mutated via
// Store.AddUsage, an atomic increment, so concurrent turns on one session
// cannot lose an update. A durable sqlite-backed Store lives in store/sqlite;
// additional backends can be added without changing any calling code.
package session
