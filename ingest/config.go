package ingest

import (
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/scanner"
)

// BoundaryScanner is the structural multipart scanner driven by a Parser.
// Write returns the number of bytes consumed; fewer than len(b) signals
// malformed input.
type BoundaryScanner interface {
	Write(b []byte) int
	End() error
}

// ScannerFactory creates a BoundaryScanner for a boundary.
type ScannerFactory func(boundary string, h scanner.Handler) (BoundaryScanner, error)

// DefaultScanner builds the scanner from package scanner.
func DefaultScanner(boundary string, h scanner.Handler) (BoundaryScanner, error) {
	s, err := scanner.New(boundary, h)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultEncoding is the charset applied to headers and field text.
const DefaultEncoding = "utf-8"

// Config configures a Parser. The zero value is usable.
type Config struct {
	// MaxPartsSize caps the cumulative size of field parts (0 = unlimited).
	// File parts are not counted.
	MaxPartsSize int64
	// Encoding names the charset for part headers and Field.Text.
	Encoding string
	// Hash is reserved for content hashing and has no effect.
	Hash bool
	// Multiples is reserved for multi-value fields and has no effect.
	Multiples bool

	NewScanner ScannerFactory
	Logger     *log.Logger
	Collector  *metrics.Collector
}

func (c Config) withDefaults() Config {
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if c.NewScanner == nil {
		c.NewScanner = DefaultScanner
	}
	if c.Logger == nil {
		c.Logger = log.Nop()
	}
	return c
}

// Handlers is the consumer callback set of a Parser. Every callback is
// optional and runs on the goroutine driving the parser. An error returned
// from OnField, OnFile or a Part callback is latched as the parse error.
type Handlers struct {
	OnProgress func(received, expected int64)
	OnField    func(Field) error
	OnFile     func(*Part) error
	OnEnd      func()
	OnError    func(error)
	OnAborted  func()
}

// Chain combines handler sets; callbacks run in argument order. For
// OnField and OnFile the first error stops the chain. A Part holds a single
// OnData/OnEnd pair, so only one of the chained sets should register them.
func Chain(hs ...Handlers) Handlers {
	return Handlers{
		OnProgress: func(received, expected int64) {
			for _, h := range hs {
				if h.OnProgress != nil {
					h.OnProgress(received, expected)
				}
			}
		},
		OnField: func(f Field) error {
			for _, h := range hs {
				if h.OnField != nil {
					if err := h.OnField(f); err != nil {
						return err
					}
				}
			}
			return nil
		},
		OnFile: func(p *Part) error {
			for _, h := range hs {
				if h.OnFile != nil {
					if err := h.OnFile(p); err != nil {
						return err
					}
				}
			}
			return nil
		},
		OnEnd: func() {
			for _, h := range hs {
				if h.OnEnd != nil {
					h.OnEnd()
				}
			}
		},
		OnError: func(err error) {
			for _, h := range hs {
				if h.OnError != nil {
					h.OnError(err)
				}
			}
		},
		OnAborted: func() {
			for _, h := range hs {
				if h.OnAborted != nil {
					h.OnAborted()
				}
			}
		},
	}
}
