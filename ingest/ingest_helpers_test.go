package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
)

type testPart struct {
	headers []string
	body    string
}

func fieldPart(name, value string) testPart {
	return testPart{
		headers: []string{fmt.Sprintf(`Content-Disposition: form-data; name="%s"`, name)},
		body:    value,
	}
}

func buildBody(boundary string, parts ...testPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--" + boundary + "\r\n")
		for _, h := range p.headers {
			b.WriteString(h + "\r\n")
		}
		b.WriteString("\r\n")
		b.WriteString(p.body)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return b.String()
}

func multipartHeaders(boundary string, length int) Headers {
	return Headers{
		"content-type":   "multipart/form-data; boundary=" + boundary,
		"content-length": fmt.Sprint(length),
	}
}

// recorder captures consumer events in order.
type recorder struct {
	log    []string
	fields []Field
	files  map[string]*bytes.Buffer
	parts  []*Part
	err    error
	ends   int
	errs   int
}

func newRecorder() *recorder {
	return &recorder{files: make(map[string]*bytes.Buffer)}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnProgress: func(received, expected int64) {
			r.log = append(r.log, fmt.Sprintf("progress:%d/%d", received, expected))
		},
		OnField: func(f Field) error {
			r.fields = append(r.fields, Field{Name: f.Name, Value: bytes.Clone(f.Value)})
			r.log = append(r.log, fmt.Sprintf("field:%s=%s", f.Name, f.Value))
			return nil
		},
		OnFile: func(p *Part) error {
			buf := &bytes.Buffer{}
			r.files[p.Filename] = buf
			r.parts = append(r.parts, p)
			r.log = append(r.log, "file:"+p.Filename)
			p.OnData(func(b []byte) error {
				buf.Write(b)
				return nil
			})
			p.OnEnd(func() error {
				r.log = append(r.log, "file_end:"+p.Filename)
				return nil
			})
			return nil
		},
		OnEnd: func() {
			r.ends++
			r.log = append(r.log, "end")
		},
		OnError: func(err error) {
			r.errs++
			r.err = err
			r.log = append(r.log, "error")
		},
		OnAborted: func() {
			r.log = append(r.log, "aborted")
		},
	}
}

// terminal returns the log without progress entries.
func (r *recorder) terminal() []string {
	var out []string
	for _, e := range r.log {
		if !strings.HasPrefix(e, "progress:") {
			out = append(out, e)
		}
	}
	return out
}

func writeChunks(p *Parser, body string, chunk int) error {
	for i := 0; i < len(body); i += chunk {
		end := min(i+chunk, len(body))
		if _, err := p.Write([]byte(body[i:end])); err != nil {
			return err
		}
	}
	return p.End()
}

// fakeSource is an in-memory Source.
type fakeSource struct {
	headers   Headers
	chunks    [][]byte
	abortAt   int // chunk index before which to abort; -1 = never
	failWith  error
	pauseErr  error
	resumeErr error
	pauses    int
	resumes   int
}

func newFakeSource(h Headers, body string, chunk int) *fakeSource {
	f := &fakeSource{headers: h, abortAt: -1}
	for i := 0; i < len(body); i += chunk {
		f.chunks = append(f.chunks, []byte(body[i:min(i+chunk, len(body))]))
	}
	return f
}

func (f *fakeSource) Headers() Headers { return f.headers }

func (f *fakeSource) Pause() error {
	f.pauses++
	return f.pauseErr
}

func (f *fakeSource) Resume() error {
	f.resumes++
	return f.resumeErr
}

func (f *fakeSource) Run(ctx context.Context, r Receiver) error {
	for i, c := range f.chunks {
		if i == f.abortAt {
			r.Abort()
			return nil
		}
		if err := ctx.Err(); err != nil {
			r.Abort()
			return nil
		}
		if _, err := r.Write(c); err != nil {
			return nil
		}
	}
	if f.failWith != nil {
		r.Fail(f.failWith)
		return nil
	}
	return r.End()
}

var errBoom = errors.New("boom")
