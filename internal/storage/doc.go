// Package storage holds the shared SQLite plumbing for the durable stores:
// connection setup with the pragmas the daemon relies on, schema version
// checks, and retry handling for transient lock contention.
package storage
