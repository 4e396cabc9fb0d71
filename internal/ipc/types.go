package ipc

import "inkwell/internal/api"

// StatusRequest asks for the daemon status summary.
type StatusRequest struct{}

// StatusResponse carries the daemon status summary.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// ListRequest asks for the live and recent mission views.
type ListRequest struct{}

// ListResponse carries the mission views, live in admission order and recent
// newest first.
type ListResponse struct {
	Active []api.Mission `json:"active"`
	Recent []api.Mission `json:"recent"`
}

// AddRequest ingests one file or one directory.
type AddRequest struct {
	Path      string `json:"path"`
	TargetDir string `json:"target_dir,omitempty"`
	Dir       bool   `json:"dir,omitempty"`
}

// AddResponse reports the created mission, or the count for a directory.
type AddResponse struct {
	MissionID int64 `json:"mission_id,omitempty"`
	Added     int   `json:"added"`
}

// CancelRequest cancels one mission by id.
type CancelRequest struct {
	ID int64 `json:"id"`
}

// CancelResponse acknowledges a cancel.
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

// WatchRequest registers or removes a scan directory.
type WatchRequest struct {
	Dir    string `json:"dir"`
	Remove bool   `json:"remove,omitempty"`
}

// WatchResponse reports the watch-list change.
type WatchResponse struct {
	Changed bool     `json:"changed"`
	Watched []string `json:"watched"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a shutdown request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
