package client

// Result reports what a send request did. Only ResultSent queues a frame.
type Result int

const (
	ResultSent Result = iota
	ResultSkippedEmpty
	ResultSkippedNotOpen
	// ResultFailed means the connection broke before the frame was queued.
	ResultFailed
	// ResultRejected means the transport cannot carry the text as a single
	// frame, e.g. a line break on the TCP transport.
	ResultRejected
)

// String returns the string representation of Result
func (r Result) String() string {
	switch r {
	case ResultSent:
		return "sent"
	case ResultSkippedEmpty:
		return "empty"
	case ResultSkippedNotOpen:
		return "not_open"
	case ResultFailed:
		return "failed"
	case ResultRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Composer is the text input a message is composed in.
// *textinput.Model from charmbracelet/bubbles satisfies it.
type Composer interface {
	Value() string
	Reset()
}

// Channel is the send surface over a Controller's connection. It never
// opens or closes the connection itself.
type Channel struct {
	ctrl *Controller
}

// NewChannel creates a Channel bound to ctrl.
func NewChannel(ctrl *Controller) *Channel {
	return &Channel{ctrl: ctrl}
}

// Send queues text verbatim as one frame and returns without waiting for
// the network. A later write failure closes the connection.
//
// Empty text and a connection that is not Open are skipped quietly: no
// frame, no error, only the returned Result tells them apart.
func (ch *Channel) Send(text string) Result {
	return ch.ctrl.transmit(text)
}

// Submit sends the composer's current value and clears the composer once
// the frame has been queued. Any other result leaves the draft in place.
func (ch *Channel) Submit(c Composer) Result {
	r := ch.Send(c.Value())
	if r == ResultSent {
		c.Reset()
	}
	return r
}
