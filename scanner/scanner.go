// Package scanner implements an incremental multipart boundary scanner.
//
// The scanner is push-style: callers feed arbitrary byte slices through
// Write and receive structural callbacks (part begin, header field/value
// segments, part data, part end, end of stream) on a Handler. Header names,
// header values and part data may be split across several callbacks when a
// segment straddles two writes.
//
// A preamble before the first delimiter and an epilogue after the close
// delimiter are discarded.
//
// Slices passed to Handler callbacks alias either the caller's buffer or
// scanner-owned memory and are only valid for the duration of the callback.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
)

// Sentinel errors for scanner failures.
var (
	// ErrInvalidBoundary is returned by New for an empty boundary or one
	// containing CR or LF.
	ErrInvalidBoundary = errors.New("invalid multipart boundary")
	// ErrMalformed indicates bytes that do not match the multipart grammar.
	ErrMalformed = errors.New("malformed multipart body")
	// ErrUnexpectedEnd indicates the stream ended before the close delimiter.
	ErrUnexpectedEnd = errors.New("multipart body ended before close delimiter")
)

// Handler receives structural callbacks from a Scanner.
//
// Callbacks arrive in this order for each part: OnPartBegin, then zero or
// more OnHeaderField / OnHeaderValue segments each terminated by
// OnHeaderEnd, then OnHeadersEnd, zero or more OnPartData, and OnPartEnd.
// OnEnd is called once after the close delimiter.
type Handler interface {
	OnPartBegin()
	OnHeaderField(b []byte)
	OnHeaderValue(b []byte)
	OnHeaderEnd()
	OnHeadersEnd()
	OnPartData(b []byte)
	OnPartEnd()
	OnEnd()
}

type state int

const (
	sStart state = iota
	sAfterBoundary
	sAfterBoundaryLF
	sHeaderFieldStart
	sHeaderField
	sHeaderValueStart
	sHeaderValue
	sHeaderValueAlmostDone
	sHeadersAlmostDone
	sPartData
	sCloseHyphen
	sEnd
	sError
)

var stateNames = [...]string{
	sStart:                 "start",
	sAfterBoundary:         "after_boundary",
	sAfterBoundaryLF:       "after_boundary_lf",
	sHeaderFieldStart:      "header_field_start",
	sHeaderField:           "header_field",
	sHeaderValueStart:      "header_value_start",
	sHeaderValue:           "header_value",
	sHeaderValueAlmostDone: "header_value_almost_done",
	sHeadersAlmostDone:     "headers_almost_done",
	sPartData:              "part_data",
	sCloseHyphen:           "close_hyphen",
	sEnd:                   "end",
	sError:                 "error",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Scanner splits a multipart body into parts. It is not safe for
// concurrent use.
type Scanner struct {
	// delim is "\r\n--" + boundary. A body may open with delim[2:]
	// directly; any other preamble is skipped up to the first full delim.
	delim []byte
	h     Handler

	state   state
	matched int   // bytes of delim matched so far
	offset  int64 // total bytes consumed across writes
	err     error
}

// New creates a scanner for the given boundary (without leading dashes).
func New(boundary string, h Handler) (*Scanner, error) {
	if boundary == "" || bytes.ContainsAny([]byte(boundary), "\r\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBoundary, boundary)
	}
	if h == nil {
		return nil, errors.New("scanner handler is required")
	}
	return &Scanner{
		delim:   []byte("\r\n--" + boundary),
		h:       h,
		state:   sStart,
		matched: 2,
	}, nil
}

// Write feeds b to the scanner and returns the number of bytes consumed.
// A return value smaller than len(b) means the input is malformed; Err
// describes the failure and every later Write consumes nothing.
func (s *Scanner) Write(b []byte) int {
	if s.state == sError {
		return 0
	}

	mark := -1
	if s.state == sHeaderField || s.state == sHeaderValue {
		mark = 0
	}

	i := 0
	for i < len(b) {
		c := b[i]
		switch s.state {
		case sStart:
			if c == s.delim[s.matched] {
				s.matched++
				if s.matched == len(s.delim) {
					s.matched = 0
					s.state = sAfterBoundary
				}
				break
			}
			// Preamble. The first delimiter starts the body or a line.
			if c == '\r' {
				s.matched = 1
			} else {
				s.matched = 0
			}

		case sAfterBoundary:
			switch c {
			case '-':
				s.state = sCloseHyphen
			case ' ', '\t':
				// transport padding
			case '\r':
				s.state = sAfterBoundaryLF
			default:
				return s.fail(i, "unexpected byte after boundary")
			}

		case sAfterBoundaryLF:
			if c != '\n' {
				return s.fail(i, "expected LF after boundary")
			}
			s.state = sHeaderFieldStart
			s.h.OnPartBegin()

		case sCloseHyphen:
			if c != '-' {
				return s.fail(i, "expected close delimiter")
			}
			s.state = sEnd
			s.h.OnEnd()

		case sEnd:
			// Epilogue is ignored.
			s.offset += int64(len(b) - i)
			return len(b)

		case sHeaderFieldStart:
			if c == '\r' {
				s.state = sHeadersAlmostDone
				break
			}
			mark = i
			s.state = sHeaderField
			continue

		case sHeaderField:
			switch c {
			case ':':
				if i > mark {
					s.h.OnHeaderField(b[mark:i])
				}
				mark = -1
				s.state = sHeaderValueStart
			case '\r', '\n':
				return s.fail(i, "header line without colon")
			}

		case sHeaderValueStart:
			if c == ' ' || c == '\t' {
				break
			}
			mark = i
			s.state = sHeaderValue
			continue

		case sHeaderValue:
			if c == '\r' {
				if i > mark {
					s.h.OnHeaderValue(b[mark:i])
				}
				mark = -1
				s.h.OnHeaderEnd()
				s.state = sHeaderValueAlmostDone
			}

		case sHeaderValueAlmostDone:
			if c != '\n' {
				return s.fail(i, "expected LF after header value")
			}
			s.state = sHeaderFieldStart

		case sHeadersAlmostDone:
			if c != '\n' {
				return s.fail(i, "expected LF after headers")
			}
			s.state = sPartData
			s.matched = 0
			s.h.OnHeadersEnd()

		case sPartData:
			if s.matched == 0 {
				j := bytes.IndexByte(b[i:], '\r')
				if j < 0 {
					s.h.OnPartData(b[i:])
					i = len(b)
					continue
				}
				if j > 0 {
					s.h.OnPartData(b[i : i+j])
				}
				i += j + 1
				s.matched = 1
				continue
			}
			if c == s.delim[s.matched] {
				s.matched++
				if s.matched == len(s.delim) {
					s.matched = 0
					s.state = sAfterBoundary
					s.h.OnPartEnd()
				}
				break
			}
			// The held bytes were a false start. CR only occurs at the
			// head of the delimiter so a new match can only begin at c.
			s.h.OnPartData(s.delim[:s.matched])
			s.matched = 0
			continue
		}
		i++
	}

	switch {
	case s.state == sHeaderField && mark >= 0 && mark < len(b):
		s.h.OnHeaderField(b[mark:])
	case s.state == sHeaderValue && mark >= 0 && mark < len(b):
		s.h.OnHeaderValue(b[mark:])
	}

	s.offset += int64(len(b))
	return len(b)
}

// End signals that no more input will arrive. It returns an error unless
// the close delimiter has been seen.
func (s *Scanner) End() error {
	switch s.state {
	case sEnd:
		return nil
	case sError:
		return s.err
	default:
		return fmt.Errorf("%w (state %s, offset %d)", ErrUnexpectedEnd, s.state, s.offset)
	}
}

// Err returns the error that stopped the scanner, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Done reports whether the close delimiter has been seen.
func (s *Scanner) Done() bool {
	return s.state == sEnd
}

func (s *Scanner) fail(i int, msg string) int {
	s.err = fmt.Errorf("%w: %s at offset %d (state %s)", ErrMalformed, msg, s.offset+int64(i), s.state)
	s.state = sError
	s.offset += int64(i)
	return i
}
