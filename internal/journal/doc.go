// Package journal persists capture session history and daemon settings in
// SQLite.
//
// Writes coming from the capture controller are queued to a single writer
// goroutine so the controller never blocks on disk. Reads run directly
// against the database. Schema changes live in embedded migrations applied
// on Open.
package journal
