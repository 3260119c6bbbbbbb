// Package ingest parses multipart request bodies incrementally.
//
// A Parser negotiates the request headers, feeds body bytes to a boundary
// scanner, decodes each part's transfer encoding and delivers fields and
// file parts to a Handlers set. Every parse reports exactly one terminal
// event: OnEnd on success or OnError on failure.
//
// A Parser is driven by a single goroutine (usually a Source's Run loop)
// and is not safe for concurrent use.
package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
)

// Parser is the ingestion orchestrator for one request.
type Parser struct {
	cfg       Config
	h         Handlers
	logger    *log.Logger
	collector *metrics.Collector

	headers  Headers
	kind     contentKind
	expected int64
	received int64

	scanner BoundaryScanner
	coord   coordinator
	acc     accumulator
	bp      backpressure

	part        *partState
	headerField []byte
	headerValue []byte
}

// partState tracks the part currently between OnPartBegin and OnPartEnd.
type partState struct {
	part  *Part
	dec   decoder
	value []byte
	// flushing is set once the part counts as in flight.
	flushing bool
}

// NewParser creates a parser in the negotiating state.
func NewParser(cfg Config, h Handlers) *Parser {
	cfg = cfg.withDefaults()
	p := &Parser{
		cfg:       cfg,
		h:         h,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		acc:       accumulator{max: cfg.MaxPartsSize},
	}
	p.coord.onEnd = p.emitEnd
	p.coord.onError = p.emitError
	p.bp.fail = p.Fail
	return p
}

// State returns the lifecycle state.
func (p *Parser) State() State {
	return p.coord.state
}

// Err returns the latched error, if any.
func (p *Parser) Err() error {
	return p.coord.err
}

// BytesReceived returns the number of body bytes written so far.
func (p *Parser) BytesReceived() int64 {
	return p.received
}

// BytesExpected returns the declared body length, or UnknownLength.
// It is zero before negotiation.
func (p *Parser) BytesExpected() int64 {
	return p.expected
}

// Headers returns the negotiated request headers.
func (p *Parser) Headers() Headers {
	return p.headers
}

// WriteHeaders negotiates the request headers and moves the parser to the
// streaming state. Keys are lower-cased.
func (p *Parser) WriteHeaders(h Headers) error {
	if p.coord.state != StateNegotiating {
		if err := p.coord.err; err != nil {
			return err
		}
		return errors.New("ingest: headers already written")
	}
	p.headers = NormalizeHeaders(h)
	p.collector.IncRequestStarted()

	n, err := negotiate(p.headers, p.logger)
	p.expected = n.expected
	if err != nil {
		p.fail(err)
		return err
	}
	p.kind = n.kind

	switch n.kind {
	case kindEmpty:
		p.scanner = &emptyScanner{h: (*scanHandler)(p)}
	default:
		s, err := p.cfg.NewScanner(n.boundary, (*scanHandler)(p))
		if err != nil {
			perr := &ParseError{Kind: ErrBadContentType, Msg: "bad content-type header, invalid multipart boundary", Err: err}
			p.fail(perr)
			return perr
		}
		p.scanner = s
	}

	p.coord.streaming()
	p.logger.Debug("headers negotiated", map[string]any{
		"content_kind":   n.kind.String(),
		"boundary":       n.boundary,
		"bytes_expected": n.expected,
	})
	p.emitProgress()
	return nil
}

// Write feeds body bytes to the parser. Once an error is latched, Write
// discards its input and returns the latched error. Bytes written after a
// successful end are counted but otherwise ignored.
func (p *Parser) Write(b []byte) (int, error) {
	switch p.coord.state {
	case StateErrored:
		return 0, p.coord.err
	case StateNegotiating:
		err := &ParseError{Kind: ErrUninitializedParser, Msg: "uninitialized parser"}
		p.fail(err)
		return 0, err
	case StateEnded:
		p.received += int64(len(b))
		p.collector.AddBytesReceived(int64(len(b)))
		return len(b), nil
	}

	p.received += int64(len(b))
	p.collector.AddBytesReceived(int64(len(b)))
	p.emitProgress()

	n := p.scanner.Write(b)
	if n != len(b) {
		var cause error
		if s, ok := p.scanner.(interface{ Err() error }); ok {
			cause = s.Err()
		}
		p.fail(errScannerDesync(n, len(b), cause))
	}
	if err := p.coord.err; err != nil {
		return n, err
	}
	return len(b), nil
}

// End signals that the transport delivered the whole body. It finalizes
// the scanner; a body that stopped before the close delimiter fails.
func (p *Parser) End() error {
	switch p.coord.state {
	case StateErrored:
		return p.coord.err
	case StateEnded:
		return nil
	case StateNegotiating:
		p.fail(&ParseError{Kind: ErrUninitializedParser, Msg: "uninitialized parser"})
		return p.coord.err
	}
	if err := p.scanner.End(); err != nil {
		p.fail(err)
	}
	return p.coord.err
}

// Abort signals abnormal transport termination. It emits OnAborted and
// then fails with ErrRequestAborted. It has no effect once the parse has
// reached a terminal state.
func (p *Parser) Abort() {
	if p.coord.terminal() {
		return
	}
	p.logger.Warn("request aborted", map[string]any{
		"bytes_received": p.received,
		"bytes_expected": p.expected,
	})
	p.collector.IncRequestAborted()
	if p.h.OnAborted != nil {
		p.h.OnAborted()
	}
	p.fail(&ParseError{Kind: ErrRequestAborted, Msg: "request aborted"})
}

// Fail latches a transport error unchanged.
func (p *Parser) Fail(err error) {
	if err == nil {
		return
	}
	p.fail(err)
}

// Pause asks the bound source to stop delivering data. It returns false
// when no source is bound or the source refused; a refusal latches the
// source's error.
func (p *Parser) Pause() bool {
	return p.bp.pause()
}

// Resume asks the bound source to continue delivering data.
func (p *Parser) Resume() bool {
	return p.bp.resume()
}

// Parse negotiates src's headers and drives src until the body is
// consumed. It returns the latched error, or nil after a successful end.
func (p *Parser) Parse(ctx context.Context, src Source) error {
	p.bp.flow = src
	if err := p.WriteHeaders(src.Headers()); err != nil {
		return err
	}
	if err := src.Run(ctx, p); err != nil {
		p.Fail(err)
	}
	if p.coord.state == StateStreaming {
		// The source returned without signalling completion.
		_ = p.End()
	}
	return p.coord.err
}

func (p *Parser) fail(err error) {
	p.coord.fail(err)
}

func (p *Parser) emitProgress() {
	if p.h.OnProgress != nil {
		p.h.OnProgress(p.received, p.expected)
	}
}

func (p *Parser) emitEnd() {
	p.collector.IncRequestCompleted()
	p.logger.Info("request parsed", map[string]any{
		"bytes_received": p.received,
		"parts_size":     p.acc.size,
	})
	if p.h.OnEnd != nil {
		p.h.OnEnd()
	}
}

func (p *Parser) emitError(err error) {
	kind := KindName(err)
	p.collector.IncRequestFailed(kind)
	p.logger.Error("request failed", map[string]any{
		"error":          err.Error(),
		"kind":           kind,
		"bytes_received": p.received,
	})
	if p.h.OnError != nil {
		p.h.OnError(err)
	}
}

// consumerErr latches an error returned by a consumer callback.
func (p *Parser) consumerErr(err error) bool {
	if err == nil {
		return false
	}
	p.fail(err)
	return true
}

// deliver routes decoded bytes to the field accumulator or the file part.
func (p *Parser) deliver(ps *partState, b []byte) {
	if len(b) == 0 {
		return
	}
	if ps.part.IsFile() {
		p.consumerErr(ps.part.emitData(b))
		return
	}
	value, err := p.acc.add(ps.value, b)
	ps.value = value
	if err != nil {
		p.fail(err)
	}
}

// scanHandler receives the scanner callbacks for a Parser.
type scanHandler Parser

func (s *scanHandler) p() *Parser { return (*Parser)(s) }

func (s *scanHandler) OnPartBegin() {
	p := s.p()
	if p.coord.terminal() {
		return
	}
	p.part = &partState{part: &Part{Header: make(map[string]string)}}
	p.headerField = p.headerField[:0]
	p.headerValue = p.headerValue[:0]
}

func (s *scanHandler) OnHeaderField(b []byte) {
	p := s.p()
	if p.part == nil {
		return
	}
	p.headerField = append(p.headerField, b...)
}

func (s *scanHandler) OnHeaderValue(b []byte) {
	p := s.p()
	if p.part == nil {
		return
	}
	p.headerValue = append(p.headerValue, b...)
}

func (s *scanHandler) OnHeaderEnd() {
	p := s.p()
	if p.part == nil || p.coord.terminal() {
		return
	}
	name := strings.ToLower(p.headerText(p.headerField))
	value := p.headerText(p.headerValue)
	p.part.part.Header[name] = value
	p.headerField = p.headerField[:0]
	p.headerValue = p.headerValue[:0]
}

func (s *scanHandler) OnHeadersEnd() {
	p := s.p()
	ps := p.part
	if ps == nil || p.coord.terminal() {
		return
	}
	part := ps.part
	disposition := part.Header["content-disposition"]
	part.Name = dispositionName(disposition)
	part.Filename, part.hasFilename = dispositionFilename(disposition)
	part.Mime = part.Header["content-type"]
	part.TransferEncoding = normalizeTransferEncoding(part.Header["content-transfer-encoding"])

	dec, err := newDecoder(part.TransferEncoding)
	if err != nil {
		p.part = nil
		p.fail(err)
		return
	}
	ps.dec = dec
	if part.TransferEncoding == "base64" {
		p.collector.IncBase64Part()
	}

	p.logger.Debug("part begin", map[string]any{
		"name":              part.Name,
		"filename":          part.Filename,
		"mime":              part.Mime,
		"transfer_encoding": part.TransferEncoding,
		"file":              part.IsFile(),
	})

	ps.flushing = true
	p.coord.flushBegin()

	if part.IsFile() && p.h.OnFile != nil {
		p.consumerErr(p.h.OnFile(part))
	}
}

func (s *scanHandler) OnPartData(b []byte) {
	p := s.p()
	ps := p.part
	if ps == nil || ps.dec == nil || p.coord.terminal() {
		return
	}
	p.deliver(ps, ps.dec.decode(b))
}

func (s *scanHandler) OnPartEnd() {
	p := s.p()
	ps := p.part
	p.part = nil
	if ps == nil || ps.dec == nil || p.coord.terminal() {
		return
	}
	p.deliver(ps, ps.dec.flush())
	if p.coord.terminal() {
		return
	}

	part := ps.part
	if part.IsFile() {
		if p.consumerErr(part.emitEnd()) {
			return
		}
		p.collector.IncFile(part.size)
	} else {
		value := ps.value
		if value == nil {
			value = []byte{}
		}
		if p.h.OnField != nil {
			if p.consumerErr(p.h.OnField(Field{Name: part.Name, Value: value})) {
				return
			}
		}
		p.collector.IncField(int64(len(value)))
	}

	p.logger.Debug("part end", map[string]any{
		"name": part.Name,
		"size": max(part.size, int64(len(ps.value))),
	})
	if ps.flushing {
		p.coord.flushEnd()
	}
}

func (s *scanHandler) OnEnd() {
	s.p().coord.scannerEnded()
}

// headerText decodes raw header bytes with the configured charset,
// falling back to the raw bytes if the charset is unusable.
func (p *Parser) headerText(b []byte) string {
	text, err := decodeText(b, p.cfg.Encoding)
	if err != nil {
		return string(b)
	}
	return text
}

// emptyScanner stands in for the boundary scanner of a zero-length body.
type emptyScanner struct {
	h *scanHandler
}

func (e *emptyScanner) Write(b []byte) int {
	return 0
}

func (e *emptyScanner) End() error {
	e.h.OnEnd()
	return nil
}
