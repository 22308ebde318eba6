// Package persistence keeps the activity journal of the web UI.
// Job records live in the backend service, the journal only tracks mutations made
// through this UI and stored in SQLite with WAL mode for better concurrency.
package persistence
