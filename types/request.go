// Package types defines core domain types shared across partflow packages.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"time"

	"github.com/google/uuid"
)

// RequestMeta identifies a single parse operation.
// Every log line, stored file and completion event carries it.
type RequestMeta struct {
	// RequestID is the canonical request identifier (UUIDv4 unless supplied).
	RequestID string `msgpack:"request_id" json:"request_id" yaml:"request_id"`
	// RemoteAddr is the client address, when known.
	RemoteAddr string `msgpack:"remote_addr,omitempty" json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	// StartedAt is when the parse operation began.
	StartedAt time.Time `msgpack:"started_at" json:"started_at" yaml:"started_at"`
}

// NewRequestMeta creates request metadata with a fresh request ID.
func NewRequestMeta(remoteAddr string) *RequestMeta {
	return &RequestMeta{
		RequestID:  uuid.NewString(),
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now().UTC(),
	}
}

// Day returns the partition day (YYYY-MM-DD, UTC) of the request start.
func (m *RequestMeta) Day() string {
	return m.StartedAt.UTC().Format("2006-01-02")
}

// OutcomeStatus is the terminal status of a parse operation.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the parser emitted end.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeError indicates the parser emitted error.
	OutcomeError OutcomeStatus = "error"
	// OutcomeAborted indicates the transport aborted the request.
	OutcomeAborted OutcomeStatus = "aborted"
)

// IsSuccess returns true for OutcomeSuccess.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeSuccess
}

// Outcome is the terminal outcome of a parse operation.
type Outcome struct {
	Status  OutcomeStatus `msgpack:"status" json:"status" yaml:"status"`
	Message string        `msgpack:"message,omitempty" json:"message,omitempty" yaml:"message,omitempty"`
}

// FileRecord describes a stored file part.
type FileRecord struct {
	Name     string `msgpack:"name" json:"name" yaml:"name"`
	Filename string `msgpack:"filename" json:"filename" yaml:"filename"`
	Mime     string `msgpack:"mime,omitempty" json:"mime,omitempty" yaml:"mime,omitempty"`
	Path     string `msgpack:"path" json:"path" yaml:"path"`
	Size     int64  `msgpack:"size" json:"size" yaml:"size"`
}

// FieldRecord describes a completed field part.
type FieldRecord struct {
	Name  string `msgpack:"name" json:"name" yaml:"name"`
	Value string `msgpack:"value" json:"value" yaml:"value"`
	Size  int    `msgpack:"size" json:"size" yaml:"size"`
}
