package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/justapithecus/partflow/log"
)

// Headers maps lower-cased request header names to values.
type Headers map[string]string

// NormalizeHeaders returns a copy of h with lower-cased keys.
func NormalizeHeaders(h map[string]string) Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Get returns the value of the named header (case-insensitive).
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// UnknownLength is the expected body length of a request whose size is
// not declared (chunked transfer-encoding or a malformed content-length).
const UnknownLength int64 = -1

type contentKind int

const (
	kindEmpty contentKind = iota
	kindMultipart
)

func (k contentKind) String() string {
	if k == kindEmpty {
		return "empty"
	}
	return "multipart"
}

type negotiation struct {
	kind     contentKind
	boundary string
	expected int64
}

var (
	multipartRe = regexp.MustCompile(`(?i)multipart`)
	boundaryRe  = regexp.MustCompile(`(?i)boundary=(?:"([^"]+)"|([^;]+))`)
)

// negotiate derives the expected body length and the multipart boundary
// from the request headers.
func negotiate(h Headers, logger *log.Logger) (negotiation, error) {
	n := negotiation{expected: expectedLength(h, logger)}
	if n.expected == 0 {
		n.kind = kindEmpty
		return n, nil
	}

	ct, ok := h["content-type"]
	if !ok || ct == "" {
		return n, errBadContentType("no content-type")
	}
	if !multipartRe.MatchString(ct) {
		return n, errBadContentType("unknown content-type: " + ct)
	}

	m := boundaryRe.FindStringSubmatch(ct)
	if m == nil {
		return n, errBadContentType("no multipart boundary")
	}
	boundary := m[1]
	if boundary == "" {
		boundary = strings.TrimSpace(m[2])
	}
	if boundary == "" {
		return n, errBadContentType("no multipart boundary")
	}

	n.kind = kindMultipart
	n.boundary = boundary
	return n, nil
}

// expectedLength treats an empty header value as absent.
func expectedLength(h Headers, logger *log.Logger) int64 {
	if v := strings.TrimSpace(h["content-length"]); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			logger.Warn("malformed content-length, treating body length as unknown", map[string]any{
				"content_length": v,
			})
			return UnknownLength
		}
		return n
	}
	if strings.TrimSpace(h["transfer-encoding"]) == "" {
		return 0
	}
	return UnknownLength
}
