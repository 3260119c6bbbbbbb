package lode

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
)

// CatalogDataset is the lode dataset ID of the request catalog.
const CatalogDataset = "partflow-requests"

// CatalogEntry is one request in the catalog.
type CatalogEntry struct {
	RequestID     string    `json:"request_id" yaml:"request_id"`
	Day           string    `json:"day" yaml:"day"`
	Status        string    `json:"status" yaml:"status"`
	Message       string    `json:"message,omitempty" yaml:"message,omitempty"`
	Fields        int64     `json:"fields" yaml:"fields"`
	Files         int64     `json:"files" yaml:"files"`
	FileBytes     int64     `json:"file_bytes" yaml:"file_bytes"`
	BytesReceived int64     `json:"bytes_received" yaml:"bytes_received"`
	ManifestPath  string    `json:"manifest_path" yaml:"manifest_path"`
	CompletedAt   time.Time `json:"completed_at" yaml:"completed_at"`
}

// Catalog is an append-only lode dataset with one JSONL record per
// completed request, partitioned by day.
type Catalog struct {
	ds lode.Dataset
}

// NewCatalog creates the catalog dataset over factory.
func NewCatalog(factory lode.StoreFactory) (*Catalog, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(CatalogDataset),
		factory,
		lode.WithHiveLayout("day"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, CatalogDataset)
	}
	return &Catalog{ds: ds}, nil
}

// Record appends the catalog entry of a written manifest.
func (c *Catalog) Record(ctx context.Context, m *Manifest, manifestPath string) error {
	record := map[string]any{
		"request_id":     m.Request.RequestID,
		"day":            m.Request.Day(),
		"status":         string(m.Outcome.Status),
		"message":        m.Outcome.Message,
		"fields":         len(m.Fields),
		"files":          len(m.Files),
		"file_bytes":     m.FileBytes(),
		"bytes_received": m.BytesReceived,
		"manifest_path":  manifestPath,
		"completed_at":   m.CompletedAt.UTC().Format(time.RFC3339Nano),
	}
	if _, err := c.ds.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, CatalogDataset)
	}
	return nil
}

// List returns catalog entries, newest first. A non-empty day restricts
// the result to that partition.
func (c *Catalog) List(ctx context.Context, day string) ([]CatalogEntry, error) {
	snapshots, err := c.ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, CatalogDataset+"/snapshots")
	}

	var entries []CatalogEntry
	for _, snap := range snapshots {
		if day != "" && !snapshotHasPartition(snap, "day", day) {
			continue
		}
		data, err := c.ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", CatalogDataset, snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			e := toCatalogEntry(record)
			if day != "" && e.Day != day {
				continue
			}
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CompletedAt.After(entries[j].CompletedAt)
	})
	return entries, nil
}

func toCatalogEntry(r map[string]any) CatalogEntry {
	completed, _ := time.Parse(time.RFC3339Nano, toString(r["completed_at"]))
	return CatalogEntry{
		RequestID:     toString(r["request_id"]),
		Day:           toString(r["day"]),
		Status:        toString(r["status"]),
		Message:       toString(r["message"]),
		Fields:        toInt64(r["fields"]),
		Files:         toInt64(r["files"]),
		FileBytes:     toInt64(r["file_bytes"]),
		BytesReceived: toInt64(r["bytes_received"]),
		ManifestPath:  toString(r["manifest_path"]),
		CompletedAt:   completed,
	}
}

// snapshotHasPartition reports whether any file of the snapshot lives in
// the key=value partition. Segments are matched exactly, so day=2026-01-1
// does not match day=2026-01-10.
func snapshotHasPartition(snap *lode.DatasetSnapshot, key, value string) bool {
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric types a JSON round trip may produce.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
