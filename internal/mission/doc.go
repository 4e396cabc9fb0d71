// Package mission defines the conversion mission value object and its
// lifecycle state machine. A mission tracks one source file through queueing,
// attempts, retries, and a terminal outcome.
package mission
