// Package watchlist persists the ingestion bookkeeping: which directories
// the daemon scans and which source files it has already turned into
// missions. Both survive restarts so a rescan does not duplicate work.
package watchlist
