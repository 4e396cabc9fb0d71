// Package render dispatches conversion work to the renderer matching a
// source file's extension family and defines the fault taxonomy the
// scheduling core classifies. The gateway carries no retry or timeout logic;
// those decisions belong to the scheduler.
package render
