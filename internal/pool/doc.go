// Package pool implements the bounded worker pool that executes conversion
// attempts. Sizing (core/max workers, backlog capacity, idle reclaim) comes
// from a live snapshot function so configuration changes apply without a
// restart.
package pool
