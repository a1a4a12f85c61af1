package client

import (
	"sync"

	"github.com/omochice/relay-chat/pkg/protocol"
)

type frame struct {
	kind protocol.FrameKind
	data []byte
}

// outbox is the ordered, unbounded queue of frames waiting for one
// connection's writer. push never blocks.
type outbox struct {
	mu     sync.Mutex
	frames []frame
	closed bool
	notify chan struct{}
}

func newOutbox() *outbox {
	return &outbox{notify: make(chan struct{}, 1)}
}

// push queues f. It reports false once the writer has given up.
func (o *outbox) push(f frame) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.frames = append(o.frames, f)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns every queued frame.
func (o *outbox) take() []frame {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := o.frames
	o.frames = nil
	return batch
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.frames = nil
}
