// Package reader provides the read-side data access layer for the
// partflow CLI.
//
// Read-only commands go through this package exclusively. It reads
// manifests and catalog entries written by ingest and serve, and never
// mutates storage.
package reader

import (
	"time"

	"github.com/justapithecus/partflow/types"
)

// ListRequestsOptions filters ListRequests.
type ListRequestsOptions struct {
	// Day restricts results to one partition (YYYY-MM-DD).
	Day string
	// Status restricts results to one outcome status.
	Status string
	// Limit caps the result count (0 = no limit).
	Limit int
}

// ListRequestItem is a thin row describing one stored request.
type ListRequestItem struct {
	RequestID   string    `json:"request_id" yaml:"request_id"`
	Day         string    `json:"day" yaml:"day"`
	Status      string    `json:"status" yaml:"status"`
	Fields      int64     `json:"fields" yaml:"fields"`
	Files       int64     `json:"files" yaml:"files"`
	FileBytes   int64     `json:"file_bytes" yaml:"file_bytes" render:"bytes"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// ShowRequestResponse is the full manifest of one request.
type ShowRequestResponse struct {
	RequestID     string              `json:"request_id" yaml:"request_id"`
	Day           string              `json:"day" yaml:"day"`
	RemoteAddr    string              `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	StartedAt     time.Time           `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time           `json:"completed_at" yaml:"completed_at"`
	Status        string              `json:"status" yaml:"status"`
	Message       string              `json:"message,omitempty" yaml:"message,omitempty"`
	BytesReceived int64               `json:"bytes_received" yaml:"bytes_received" render:"bytes"`
	BytesExpected int64               `json:"bytes_expected" yaml:"bytes_expected" render:"bytes"`
	ManifestPath  string              `json:"manifest_path" yaml:"manifest_path"`
	Version       string              `json:"version" yaml:"version"`
	Fields        []types.FieldRecord `json:"fields" yaml:"fields"`
	Files         []types.FileRecord  `json:"files" yaml:"files"`
}

// RequestStats aggregates stored requests.
type RequestStats struct {
	Total     int   `json:"total" yaml:"total"`
	Succeeded int   `json:"succeeded" yaml:"succeeded"`
	Failed    int   `json:"failed" yaml:"failed"`
	Aborted   int   `json:"aborted" yaml:"aborted"`
	Fields    int64 `json:"fields" yaml:"fields"`
	Files     int64 `json:"files" yaml:"files"`
	FileBytes int64 `json:"file_bytes" yaml:"file_bytes" render:"bytes"`
}
