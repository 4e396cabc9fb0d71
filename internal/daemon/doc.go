// Package daemon owns process lifecycle for the conversion service: the
// single-instance lock, startup and shutdown ordering of the scheduling
// core, and the status view the IPC surface reports.
package daemon
