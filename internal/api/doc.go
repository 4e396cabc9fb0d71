// Package api defines the transport-neutral views of missions and daemon
// state shared by the IPC layer and the CLI.
package api
