package api

import (
	"time"

	"inkwell/internal/fileutil"
	"inkwell/internal/mission"
)

// Mission is the wire and display form of a mission snapshot.
type Mission struct {
	ID         int64     `json:"id"`
	SourcePath string    `json:"source_path"`
	TargetPath string    `json:"target_path"`
	SizeBytes  int64     `json:"size_bytes"`
	Size       string    `json:"size"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	JoinTime   time.Time `json:"join_time"`
	StartTime  time.Time `json:"start_time,omitzero"`
	EndTime    time.Time `json:"end_time,omitzero"`
	Errors     string    `json:"errors,omitempty"`
}

// FromSnapshot converts a mission snapshot for transport.
func FromSnapshot(snap mission.Snapshot) Mission {
	return Mission{
		ID:         snap.ID,
		SourcePath: snap.SourcePath,
		TargetPath: snap.TargetPath,
		SizeBytes:  snap.FileSize,
		Size:       fileutil.ReadableSize(snap.FileSize),
		Status:     string(snap.Status),
		RetryCount: snap.RetryCount,
		JoinTime:   snap.JoinTime,
		StartTime:  snap.StartTime,
		EndTime:    snap.EndTime,
		Errors:     snap.Errors,
	}
}

// FromSnapshots converts a slice of snapshots, preserving order.
func FromSnapshots(snaps []mission.Snapshot) []Mission {
	out := make([]Mission, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, FromSnapshot(snap))
	}
	return out
}

// DaemonStatus summarizes the running daemon for the status surface.
type DaemonStatus struct {
	Running     bool     `json:"running"`
	PID         int      `json:"pid"`
	SessionID   string   `json:"session_id"`
	SocketPath  string   `json:"socket_path"`
	LockPath    string   `json:"lock_path"`
	ArchivePath string   `json:"archive_path"`
	Workers     int      `json:"workers"`
	Outstanding int      `json:"outstanding"`
	Capacity    int      `json:"capacity"`
	Watched     []string `json:"watched,omitempty"`
	Degraded    string   `json:"degraded,omitempty"`
}
