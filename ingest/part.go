package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Part is a file part surfaced to the consumer while it streams.
//
// The consumer registers OnData and OnEnd from within Handlers.OnFile.
// Decoded chunks passed to OnData are only valid for the duration of the
// call. A part without an OnData callback is drained and discarded.
type Part struct {
	Name             string
	Filename         string
	Mime             string
	TransferEncoding string
	Header           map[string]string // lower-cased names

	hasFilename bool
	size        int64
	onData      func([]byte) error
	onEnd       func() error
}

// IsFile reports whether the part carried a filename parameter, even an
// empty one.
func (p *Part) IsFile() bool {
	return p.hasFilename
}

// Size returns the number of decoded bytes delivered so far.
func (p *Part) Size() int64 {
	return p.size
}

// OnData registers the callback receiving decoded chunks.
func (p *Part) OnData(fn func([]byte) error) {
	p.onData = fn
}

// OnEnd registers the callback invoked after the last chunk.
func (p *Part) OnEnd(fn func() error) {
	p.onEnd = fn
}

func (p *Part) emitData(b []byte) error {
	p.size += int64(len(b))
	if p.onData == nil {
		return nil
	}
	return p.onData(b)
}

func (p *Part) emitEnd() error {
	if p.onEnd == nil {
		return nil
	}
	return p.onEnd()
}

// Field is a completed non-file part.
type Field struct {
	Name  string
	Value []byte
}

// Text decodes the value using the named charset (IANA or WHATWG label).
// An empty name means UTF-8.
func (f Field) Text(charset string) (string, error) {
	return decodeText(f.Value, charset)
}

// Fields maps field names to their last received value.
type Fields map[string][]byte

// Text decodes the named field using charset. Missing fields yield "".
func (f Fields) Text(name, charset string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", nil
	}
	return decodeText(v, charset)
}

func lookupCharset(name string) (encoding.Encoding, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

func decodeText(b []byte, charset string) (string, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(out), nil
}

var (
	nameRe     = regexp.MustCompile(`(?i)\bname="([^"]+)"`)
	filenameRe = regexp.MustCompile(`(?i)\bfilename="(.*?)"(?:$|; )`)
	charRefRe  = regexp.MustCompile(`&#(\d{4});`)
)

// dispositionName extracts the name parameter of a Content-Disposition
// value.
func dispositionName(v string) string {
	if m := nameRe.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return ""
}

// dispositionFilename extracts the filename parameter. Browsers send the
// full client path on some platforms, so everything up to the last
// backslash is dropped. %22 and four-digit numeric character references
// are unescaped.
func dispositionFilename(v string) (string, bool) {
	m := filenameRe.FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	name := m[1]
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "%22", `"`)
	name = charRefRe.ReplaceAllStringFunc(name, func(ref string) string {
		code, err := strconv.Atoi(ref[2:6])
		if err != nil {
			return ref
		}
		return string(rune(code))
	})
	return name, true
}
