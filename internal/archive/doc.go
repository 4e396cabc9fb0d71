// Package archive persists the final record of every mission that reached a
// terminal status. Records are append-only; the live registry never reads
// them back except to seed history views and the id sequence after restart.
package archive
