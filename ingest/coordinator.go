package ingest

// State is the lifecycle state of a Parser.
type State int

const (
	// StateNegotiating is the initial state, before headers are written.
	StateNegotiating State = iota
	// StateStreaming accepts body data.
	StateStreaming
	// StateEnded is terminal: the body was parsed successfully.
	StateEnded
	// StateErrored is terminal: an error was latched.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateErrored
}

// coordinator decides the single terminal event of a parse. end is only
// emitted once the scanner has finished and no part is still flushing;
// the first error wins and suppresses end.
type coordinator struct {
	state    State
	ended    bool // scanner signalled completion
	flushing int  // parts begun but not yet delivered
	err      error

	onEnd   func()
	onError func(error)
}

func (c *coordinator) terminal() bool {
	return c.state.Terminal()
}

func (c *coordinator) streaming() {
	if c.state == StateNegotiating {
		c.state = StateStreaming
	}
}

// fail latches err and reports whether it was latched.
func (c *coordinator) fail(err error) bool {
	if c.err != nil || c.ended || c.terminal() {
		return false
	}
	c.err = err
	c.state = StateErrored
	if c.onError != nil {
		c.onError(err)
	}
	return true
}

func (c *coordinator) scannerEnded() {
	c.ended = true
	c.maybeFinish()
}

func (c *coordinator) flushBegin() {
	c.flushing++
}

func (c *coordinator) flushEnd() {
	if c.flushing > 0 {
		c.flushing--
	}
	c.maybeFinish()
}

func (c *coordinator) maybeFinish() {
	if !c.ended || c.flushing > 0 || c.err != nil || c.terminal() {
		return
	}
	c.state = StateEnded
	if c.onEnd != nil {
		c.onEnd()
	}
}
