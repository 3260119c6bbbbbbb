package scanner

import (
	"errors"
	"strings"
	"testing"
)

type recordedPart struct {
	headers [][2]string
	data    string
	ended   bool
}

// recorder coalesces split segments so results are comparable across
// different write patterns.
type recorder struct {
	parts  []*recordedPart
	field  strings.Builder
	value  strings.Builder
	ends   int
	events []string
}

func (r *recorder) cur() *recordedPart { return r.parts[len(r.parts)-1] }

func (r *recorder) OnPartBegin() {
	r.parts = append(r.parts, &recordedPart{})
	r.events = append(r.events, "part_begin")
}
func (r *recorder) OnHeaderField(b []byte) { r.field.Write(b) }
func (r *recorder) OnHeaderValue(b []byte) { r.value.Write(b) }
func (r *recorder) OnHeaderEnd() {
	p := r.cur()
	p.headers = append(p.headers, [2]string{r.field.String(), r.value.String()})
	r.field.Reset()
	r.value.Reset()
	r.events = append(r.events, "header_end")
}
func (r *recorder) OnHeadersEnd()       { r.events = append(r.events, "headers_end") }
func (r *recorder) OnPartData(b []byte) { r.cur().data += string(b) }
func (r *recorder) OnPartEnd() {
	r.cur().ended = true
	r.events = append(r.events, "part_end")
}
func (r *recorder) OnEnd() {
	r.ends++
	r.events = append(r.events, "end")
}

const twoParts = "--AaB03x\r\n" +
	"Content-Disposition: form-data; name=\"foo\"\r\n" +
	"\r\n" +
	"bar\r\n" +
	"--AaB03x\r\n" +
	"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"line one\r\nline two\r\n--not-the-boundary\r\r\n-\r\n--AaB\r\n" +
	"--AaB03x--\r\n" +
	"epilogue is ignored"

func scanAll(t *testing.T, body string, chunk int) *recorder {
	t.Helper()
	rec := &recorder{}
	s, err := New("AaB03x", rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < len(body); i += chunk {
		end := min(i+chunk, len(body))
		if n := s.Write([]byte(body[i:end])); n != end-i {
			t.Fatalf("Write consumed %d of %d at offset %d: %v", n, end-i, i, s.Err())
		}
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	return rec
}

func TestScanner_TwoParts(t *testing.T) {
	rec := scanAll(t, twoParts, len(twoParts))

	if len(rec.parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(rec.parts))
	}
	if rec.ends != 1 {
		t.Errorf("expected 1 end, got %d", rec.ends)
	}

	p0 := rec.parts[0]
	if len(p0.headers) != 1 || p0.headers[0][0] != "Content-Disposition" ||
		p0.headers[0][1] != `form-data; name="foo"` {
		t.Errorf("part 0 headers = %v", p0.headers)
	}
	if p0.data != "bar" {
		t.Errorf("part 0 data = %q, want %q", p0.data, "bar")
	}

	p1 := rec.parts[1]
	if len(p1.headers) != 2 || p1.headers[1] != [2]string{"Content-Type", "text/plain"} {
		t.Errorf("part 1 headers = %v", p1.headers)
	}
	wantData := "line one\r\nline two\r\n--not-the-boundary\r\r\n-\r\n--AaB"
	if p1.data != wantData {
		t.Errorf("part 1 data = %q, want %q", p1.data, wantData)
	}
	for i, p := range rec.parts {
		if !p.ended {
			t.Errorf("part %d not ended", i)
		}
	}
}

func TestScanner_ChunkSizeInvariance(t *testing.T) {
	want := scanAll(t, twoParts, len(twoParts))
	for _, chunk := range []int{1, 2, 3, 5, 7, 11, 64} {
		got := scanAll(t, twoParts, chunk)
		if strings.Join(got.events, ",") != strings.Join(want.events, ",") {
			t.Errorf("chunk %d: events differ\n got %v\nwant %v", chunk, got.events, want.events)
		}
		for i := range want.parts {
			if got.parts[i].data != want.parts[i].data {
				t.Errorf("chunk %d part %d: data %q, want %q", chunk, i, got.parts[i].data, want.parts[i].data)
			}
			if len(got.parts[i].headers) != len(want.parts[i].headers) {
				t.Fatalf("chunk %d part %d: header count differs", chunk, i)
			}
			for j := range want.parts[i].headers {
				if got.parts[i].headers[j] != want.parts[i].headers[j] {
					t.Errorf("chunk %d part %d header %d: %v, want %v",
						chunk, i, j, got.parts[i].headers[j], want.parts[i].headers[j])
				}
			}
		}
	}
}

func TestScanner_EmptyPartAndPadding(t *testing.T) {
	body := "--b \t\r\n" +
		"X-Empty:\r\n" +
		"\r\n" +
		"\r\n--b--"
	rec := &recorder{}
	s, err := New("b", rec)
	if err != nil {
		t.Fatal(err)
	}
	if n := s.Write([]byte(body)); n != len(body) {
		t.Fatalf("consumed %d of %d: %v", n, len(body), s.Err())
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(rec.parts) != 1 || rec.parts[0].data != "" {
		t.Fatalf("expected one empty part, got %+v", rec.parts)
	}
	if rec.parts[0].headers[0] != [2]string{"X-Empty", ""} {
		t.Errorf("header = %v", rec.parts[0].headers[0])
	}
}

func TestScanner_NoParts(t *testing.T) {
	rec := &recorder{}
	s, _ := New("b", rec)
	if n := s.Write([]byte("--b--\r\n")); n != 7 {
		t.Fatalf("consumed %d", n)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(rec.parts) != 0 || rec.ends != 1 {
		t.Errorf("parts=%d ends=%d", len(rec.parts), rec.ends)
	}
}

func TestScanner_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		consumed int
	}{
		{"garbage after boundary", "--bx", 3},
		{"missing LF after boundary", "--b\rx", 4},
		{"header without colon", "--b\r\nNoColon\r\n", 12},
		{"missing LF after header", "--b\r\nA: b\rx", 10},
		{"single hyphen close", "--b-x", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := New("b", &recorder{})
			n := s.Write([]byte(tt.body))
			if n != tt.consumed {
				t.Errorf("consumed %d, want %d", n, tt.consumed)
			}
			if !errors.Is(s.Err(), ErrMalformed) {
				t.Errorf("Err() = %v, want ErrMalformed", s.Err())
			}
			if n := s.Write([]byte("more")); n != 0 {
				t.Errorf("write after error consumed %d", n)
			}
			if !errors.Is(s.End(), ErrMalformed) {
				t.Errorf("End() = %v, want ErrMalformed", s.End())
			}
		})
	}
}

func TestScanner_Preamble(t *testing.T) {
	tests := []struct {
		name     string
		preamble string
	}{
		{"leading CRLF", "\r\n"},
		{"text preamble", "This is a multi-part message in MIME format.\r\n"},
		{"CR runs and near delimiters", "\r\r\n-\r\n--AaB\r\n--AaB03y\r\n"},
		{"delimiter not at line start", "x--AaB03x\r\n"},
	}

	want := scanAll(t, twoParts, len(twoParts))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.preamble + twoParts
			for chunk := 1; chunk <= len(body); chunk++ {
				got := scanAll(t, body, chunk)
				if strings.Join(got.events, ",") != strings.Join(want.events, ",") {
					t.Fatalf("chunk %d: events %v, want %v", chunk, got.events, want.events)
				}
				for i := range want.parts {
					if got.parts[i].data != want.parts[i].data {
						t.Fatalf("chunk %d part %d: data %q, want %q", chunk, i, got.parts[i].data, want.parts[i].data)
					}
				}
			}
		})
	}
}

func TestScanner_NoBoundary(t *testing.T) {
	for _, body := range []string{"xx-b\r\n", "--c\r\n", "no delimiter at all"} {
		rec := &recorder{}
		s, _ := New("b", rec)
		if n := s.Write([]byte(body)); n != len(body) {
			t.Errorf("%q: preamble consumed %d of %d", body, n, len(body))
		}
		if err := s.End(); !errors.Is(err, ErrUnexpectedEnd) {
			t.Errorf("%q: End() = %v, want ErrUnexpectedEnd", body, err)
		}
		if len(rec.events) != 0 {
			t.Errorf("%q: events = %v", body, rec.events)
		}
	}
}

func TestScanner_EndBeforeClose(t *testing.T) {
	s, _ := New("b", &recorder{})
	s.Write([]byte("--b\r\n\r\npartial data"))
	err := s.End()
	if !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("End() = %v, want ErrUnexpectedEnd", err)
	}
	if s.Done() {
		t.Error("Done() should be false")
	}
}

func TestNew_InvalidBoundary(t *testing.T) {
	for _, b := range []string{"", "a\rb", "a\nb"} {
		if _, err := New(b, &recorder{}); !errors.Is(err, ErrInvalidBoundary) {
			t.Errorf("New(%q) error = %v, want ErrInvalidBoundary", b, err)
		}
	}
	if _, err := New("ok", nil); err == nil {
		t.Error("New with nil handler should fail")
	}
}
