// Package deadline supervises per-attempt timeouts. A timer armed for an
// attempt cancels its dispatch handle on expiry; disarming on completion is
// unconditional so a stale timer can never cancel a later attempt that
// reuses the same mission id.
package deadline
