package ingest

import (
	"context"
	"io"
)

// Collect parses src to completion and returns its fields. File parts are
// drained and discarded. On failure the fields completed before the error
// are returned alongside it.
func Collect(ctx context.Context, src Source, cfg Config) (Fields, error) {
	return CollectWith(ctx, src, cfg, Handlers{})
}

// CollectWith is Collect with additional handlers chained after the field
// collector, e.g. to stream file parts elsewhere.
func CollectWith(ctx context.Context, src Source, cfg Config, h Handlers) (Fields, error) {
	fields := Fields{}
	collect := Handlers{
		OnField: func(f Field) error {
			fields[f.Name] = f.Value
			return nil
		},
	}
	p := NewParser(cfg, Chain(collect, h))
	err := p.Parse(ctx, src)
	return fields, err
}

// PipeFields returns handlers writing every completed field value to w.
// It suits multipart/x-mixed-replace streams where each part is a frame.
func PipeFields(w io.Writer) Handlers {
	return Handlers{
		OnField: func(f Field) error {
			_, err := w.Write(f.Value)
			return err
		},
	}
}
