package ingest

import (
	"encoding/base64"
	"strings"
)

// decoder undoes a part's Content-Transfer-Encoding incrementally.
// Returned slices are only valid until the next call.
type decoder interface {
	decode(chunk []byte) []byte
	flush() []byte
}

// newDecoder returns a decoder for the given (already lower-cased)
// transfer encoding. An empty encoding means binary.
func newDecoder(encoding string) (decoder, error) {
	switch encoding {
	case "", "binary", "7bit", "8bit":
		return identityDecoder{}, nil
	case "base64":
		return &base64Decoder{}, nil
	default:
		return nil, errUnknownTransferEncoding(encoding)
	}
}

func normalizeTransferEncoding(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "binary"
	}
	return v
}

type identityDecoder struct{}

func (identityDecoder) decode(chunk []byte) []byte { return chunk }
func (identityDecoder) flush() []byte              { return nil }

// base64Decoder decodes in 4-character groups so a group never straddles
// two decode calls. Characters outside the base64 alphabet (line breaks,
// whitespace) are dropped and the URL-safe alphabet is accepted.
type base64Decoder struct {
	text []byte // filtered input of the current call
	rem  []byte // 0-3 characters carried to the next call
	out  []byte
}

func (d *base64Decoder) decode(chunk []byte) []byte {
	d.text = append(d.text[:0], d.rem...)
	for _, c := range chunk {
		if c, ok := base64Char(c); ok {
			d.text = append(d.text, c)
		}
	}
	aligned := len(d.text) / 4 * 4
	d.rem = append(d.rem[:0], d.text[aligned:]...)
	return d.decodeGroups(d.text[:aligned])
}

// flush decodes the carried remainder leniently and resets it.
func (d *base64Decoder) flush() []byte {
	if len(d.rem) == 0 {
		return nil
	}
	out := d.decodeLenient(d.out[:0], d.rem)
	d.rem = d.rem[:0]
	d.out = out
	return out
}

func (d *base64Decoder) decodeGroups(text []byte) []byte {
	if len(text) == 0 {
		return nil
	}
	need := base64.StdEncoding.DecodedLen(len(text))
	if cap(d.out) < need {
		d.out = make([]byte, need)
	}
	out := d.out[:need]
	if n, err := base64.StdEncoding.Decode(out, text); err == nil {
		return out[:n]
	}
	// Padding in the middle of the stream (concatenated encodings) or other
	// irregularities: decode group by group, keeping whatever decodes.
	out = out[:0]
	for i := 0; i < len(text); i += 4 {
		out = d.decodeLenient(out, text[i:i+4])
	}
	return out
}

// decodeLenient appends the bytes decodable from a group of at most four
// characters to dst. Padding is ignored and a single dangling character,
// which carries fewer than eight bits, yields nothing.
func (d *base64Decoder) decodeLenient(dst, group []byte) []byte {
	var buf [4]byte
	n := 0
	for _, c := range group {
		if c != '=' {
			buf[n] = c
			n++
		}
	}
	if n < 2 {
		return dst
	}
	var dec [3]byte
	m, err := base64.RawStdEncoding.Decode(dec[:], buf[:n])
	if err != nil {
		return dst
	}
	return append(dst, dec[:m]...)
}

func base64Char(c byte) (byte, bool) {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
		c == '+', c == '/', c == '=':
		return c, true
	case c == '-':
		return '+', true
	case c == '_':
		return '/', true
	default:
		return 0, false
	}
}
