// Package recorder finalizes terminal missions: it tears down the dispatch
// handle, removes the mission from the live registry, appends the record to
// the durable archive, and maintains a bounded in-memory view of recent
// outcomes for the status surface.
package recorder
