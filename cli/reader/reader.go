package reader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/types"
)

// ErrRequestNotFound is returned by ShowRequest when no manifest exists.
var ErrRequestNotFound = errors.New("request not found")

// Reader abstracts read-only access to stored requests.
type Reader interface {
	ListRequests(ctx context.Context, opts ListRequestsOptions) ([]ListRequestItem, error)
	ShowRequest(ctx context.Context, day, requestID string) (*ShowRequestResponse, error)
	StatsRequests(ctx context.Context, day string) (*RequestStats, error)
}

// StoreReader reads from a file store. When a catalog is set, listings
// come from the catalog; otherwise manifests are scanned.
type StoreReader struct {
	store   *lode.FileStore
	catalog *lode.Catalog
}

// NewStoreReader creates a reader. catalog may be nil.
func NewStoreReader(store *lode.FileStore, catalog *lode.Catalog) *StoreReader {
	return &StoreReader{store: store, catalog: catalog}
}

// ListRequests returns stored requests, newest first.
func (r *StoreReader) ListRequests(ctx context.Context, opts ListRequestsOptions) ([]ListRequestItem, error) {
	items, err := r.listAll(ctx, opts.Day)
	if err != nil {
		return nil, err
	}

	out := items[:0]
	for _, it := range items {
		if opts.Status != "" && it.Status != opts.Status {
			continue
		}
		out = append(out, it)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ShowRequest reads the manifest of one request. Both manifest codecs
// are probed.
func (r *StoreReader) ShowRequest(ctx context.Context, day, requestID string) (*ShowRequestResponse, error) {
	if day == "" || requestID == "" {
		return nil, errors.New("day and request id are required")
	}
	prefix := fmt.Sprintf("%s/day=%s/request_id=%s", lode.RequestsPrefix, day, requestID)
	for _, codec := range []lode.ManifestCodec{lode.CodecJSON, lode.CodecMsgpack} {
		p := prefix + "/manifest." + codec.Ext()
		m, err := r.store.ReadManifest(ctx, p)
		if errors.Is(err, lode.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return showResponse(m, p), nil
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrRequestNotFound, requestID, day)
}

// StatsRequests aggregates stored requests, optionally for one day.
func (r *StoreReader) StatsRequests(ctx context.Context, day string) (*RequestStats, error) {
	items, err := r.listAll(ctx, day)
	if err != nil {
		return nil, err
	}
	stats := &RequestStats{Total: len(items)}
	for _, it := range items {
		switch types.OutcomeStatus(it.Status) {
		case types.OutcomeSuccess:
			stats.Succeeded++
		case types.OutcomeError:
			stats.Failed++
		case types.OutcomeAborted:
			stats.Aborted++
		}
		stats.Fields += it.Fields
		stats.Files += it.Files
		stats.FileBytes += it.FileBytes
	}
	return stats, nil
}

func (r *StoreReader) listAll(ctx context.Context, day string) ([]ListRequestItem, error) {
	var items []ListRequestItem
	if r.catalog != nil {
		entries, err := r.catalog.List(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			items = append(items, ListRequestItem{
				RequestID:   e.RequestID,
				Day:         e.Day,
				Status:      e.Status,
				Fields:      e.Fields,
				Files:       e.Files,
				FileBytes:   e.FileBytes,
				CompletedAt: e.CompletedAt,
			})
		}
	} else {
		var err error
		items, err = r.scanManifests(ctx, day)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CompletedAt.After(items[j].CompletedAt)
	})
	return items, nil
}

// scanManifests reads every manifest under the requests prefix.
func (r *StoreReader) scanManifests(ctx context.Context, day string) ([]ListRequestItem, error) {
	prefix := lode.RequestsPrefix + "/"
	if day != "" {
		prefix += "day=" + day + "/"
	}
	paths, err := r.store.List(ctx, prefix)
	if errors.Is(err, lode.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []ListRequestItem
	for _, p := range paths {
		if !IsManifestPath(p) {
			continue
		}
		m, err := r.store.ReadManifest(ctx, p)
		if err != nil {
			return nil, err
		}
		items = append(items, ListRequestItem{
			RequestID:   m.Request.RequestID,
			Day:         m.Request.Day(),
			Status:      string(m.Outcome.Status),
			Fields:      int64(len(m.Fields)),
			Files:       int64(len(m.Files)),
			FileBytes:   m.FileBytes(),
			CompletedAt: m.CompletedAt,
		})
	}
	return items, nil
}

// IsManifestPath reports whether p names a request manifest.
func IsManifestPath(p string) bool {
	base := path.Base(p)
	ext, ok := strings.CutPrefix(base, "manifest.")
	if !ok {
		return false
	}
	_, err := lode.ParseManifestCodec(ext)
	return err == nil && ext != ""
}

func showResponse(m *lode.Manifest, p string) *ShowRequestResponse {
	fields := m.Fields
	if fields == nil {
		fields = []types.FieldRecord{}
	}
	files := m.Files
	if files == nil {
		files = []types.FileRecord{}
	}
	return &ShowRequestResponse{
		RequestID:     m.Request.RequestID,
		Day:           m.Request.Day(),
		RemoteAddr:    m.Request.RemoteAddr,
		StartedAt:     m.Request.StartedAt,
		CompletedAt:   m.CompletedAt,
		Status:        string(m.Outcome.Status),
		Message:       m.Outcome.Message,
		BytesReceived: m.BytesReceived,
		BytesExpected: m.BytesExpected,
		ManifestPath:  p,
		Version:       m.Version,
		Fields:        fields,
		Files:         files,
	}
}
