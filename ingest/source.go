package ingest

import "context"

// Receiver consumes transport events. *Parser implements Receiver.
// Calls are made sequentially from the goroutine running Source.Run.
type Receiver interface {
	// Write delivers body bytes. A non-nil error means the receiver
	// stopped accepting data and the source should stop reading.
	Write(b []byte) (int, error)
	// End signals that the body is complete.
	End() error
	// Abort signals abnormal termination (client went away, cancellation).
	Abort()
	// Fail delivers a transport error.
	Fail(err error)
}

// Source is a transport delivering one request body.
type Source interface {
	Flow
	// Headers returns the request headers.
	Headers() Headers
	// Run pumps the body into r until it is exhausted, r refuses data or
	// ctx is cancelled. It delivers exactly one of End, Abort or Fail
	// unless r refused data first.
	Run(ctx context.Context, r Receiver) error
}
