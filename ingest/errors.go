package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for parse failure classification.
// Use errors.Is to check a *ParseError against these.
var (
	// ErrBadContentType indicates a missing or unsupported content-type,
	// or a multipart content-type without a boundary.
	ErrBadContentType = errors.New("bad content-type")
	// ErrUnknownTransferEncoding indicates an unsupported per-part
	// Content-Transfer-Encoding.
	ErrUnknownTransferEncoding = errors.New("unknown transfer-encoding")
	// ErrMaxPartsSizeExceeded indicates the cumulative field size limit was hit.
	ErrMaxPartsSizeExceeded = errors.New("max parts size exceeded")
	// ErrScannerDesync indicates the boundary scanner consumed fewer bytes
	// than it was given.
	ErrScannerDesync = errors.New("scanner desync")
	// ErrUninitializedParser indicates data arrived before negotiation.
	ErrUninitializedParser = errors.New("uninitialized parser")
	// ErrRequestAborted indicates the transport aborted the request.
	ErrRequestAborted = errors.New("request aborted")
)

// ParseError wraps a parse failure with its classification.
type ParseError struct {
	Kind error  // one of the sentinel errors above
	Msg  string // human readable detail

	// Consumed and Total are set for ErrScannerDesync.
	Consumed int
	Total    int

	// Err is the underlying cause, if any (e.g. a scanner error).
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrBadContentType) etc.
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// KindName returns a stable short name for the error kind, used as a
// metrics label and in rendered results.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadContentType):
		return "bad_content_type"
	case errors.Is(err, ErrUnknownTransferEncoding):
		return "unknown_transfer_encoding"
	case errors.Is(err, ErrMaxPartsSizeExceeded):
		return "max_parts_size_exceeded"
	case errors.Is(err, ErrScannerDesync):
		return "scanner_desync"
	case errors.Is(err, ErrUninitializedParser):
		return "uninitialized_parser"
	case errors.Is(err, ErrRequestAborted):
		return "request_aborted"
	default:
		return "other"
	}
}

func errBadContentType(msg string) *ParseError {
	return &ParseError{Kind: ErrBadContentType, Msg: "bad content-type header, " + msg}
}

func errUnknownTransferEncoding(enc string) *ParseError {
	return &ParseError{Kind: ErrUnknownTransferEncoding, Msg: fmt.Sprintf("unknown transfer-encoding %q", enc)}
}

func errMaxPartsSize(received int64) *ParseError {
	return &ParseError{
		Kind: ErrMaxPartsSizeExceeded,
		Msg:  fmt.Sprintf("maxPartsSize exceeded, received %d bytes of part data", received),
	}
}

func errScannerDesync(consumed, total int, cause error) *ParseError {
	return &ParseError{
		Kind:     ErrScannerDesync,
		Msg:      fmt.Sprintf("parser error, %d of %d bytes parsed", consumed, total),
		Consumed: consumed,
		Total:    total,
		Err:      cause,
	}
}
