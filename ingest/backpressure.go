package ingest

// Flow is the flow-control surface of a transport.
// Pause and Resume fail once the transport is closed.
type Flow interface {
	Pause() error
	Resume() error
}

// backpressure forwards pause/resume to the bound transport. It never
// buffers; a paused transport simply stops delivering writes.
type backpressure struct {
	flow Flow
	fail func(error)
}

func (b *backpressure) pause() bool {
	if b.flow == nil {
		return false
	}
	if err := b.flow.Pause(); err != nil {
		b.fail(err)
		return false
	}
	return true
}

func (b *backpressure) resume() bool {
	if b.flow == nil {
		return false
	}
	if err := b.flow.Resume(); err != nil {
		b.fail(err)
		return false
	}
	return true
}
