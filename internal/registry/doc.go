// Package registry holds the authoritative set of non-terminal missions in
// admission order. It is the only structure shared between the admission
// scan, completion callbacks, and status reporting, so every mutation is a
// single atomic operation.
package registry
