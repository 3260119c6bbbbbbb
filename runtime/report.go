package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/types"
)

// RequestReport is the rendered result of a request, also written by
// --report.
type RequestReport struct {
	RequestID     string              `json:"request_id" yaml:"request_id"`
	Day           string              `json:"day" yaml:"day"`
	Outcome       types.OutcomeStatus `json:"outcome" yaml:"outcome"`
	Message       string              `json:"message" yaml:"message"`
	ErrorKind     string              `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ExitCode      int                 `json:"exit_code" yaml:"exit_code"`
	DurationMs    int64               `json:"duration_ms" yaml:"duration_ms"`
	BytesReceived int64               `json:"bytes_received" yaml:"bytes_received" render:"bytes"`
	BytesExpected int64               `json:"bytes_expected" yaml:"bytes_expected" render:"bytes"`
	ManifestPath  string              `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
	StorageError  string              `json:"storage_error,omitempty" yaml:"storage_error,omitempty"`
	AdapterError  string              `json:"adapter_error,omitempty" yaml:"adapter_error,omitempty"`
	Fields        []types.FieldRecord `json:"fields" yaml:"fields"`
	Files         []types.FileRecord  `json:"files" yaml:"files"`
	Metrics       *metrics.Snapshot   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// BuildRequestReport composes a RequestReport. snap may be nil.
func BuildRequestReport(result *RequestResult, snap *metrics.Snapshot, exitCode int) *RequestReport {
	report := &RequestReport{
		RequestID:     result.Meta.RequestID,
		Day:           result.Meta.Day(),
		Outcome:       result.Outcome.Status,
		Message:       result.Outcome.Message,
		ErrorKind:     result.ErrorKind,
		ExitCode:      exitCode,
		DurationMs:    result.Duration.Milliseconds(),
		BytesReceived: result.BytesReceived,
		BytesExpected: result.BytesExpected,
		ManifestPath:  result.ManifestPath,
		Fields:        result.Fields,
		Files:         result.Files,
		Metrics:       snap,
	}
	if report.Fields == nil {
		report.Fields = []types.FieldRecord{}
	}
	if report.Files == nil {
		report.Files = []types.FileRecord{}
	}
	if result.StorageErr != nil {
		report.StorageError = result.StorageErr.Error()
	}
	if result.AdapterErr != nil {
		report.AdapterError = result.AdapterErr.Error()
	}
	return report
}

// WriteRequestReport writes the report as JSON to path. If path is "-",
// writes to stderr.
func WriteRequestReport(report *RequestReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRequestReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeRequestReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeRequestReportTo(report *RequestReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
