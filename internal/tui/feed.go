package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/omochice/relay-chat/internal/client"
)

// LineMsg carries one inbound frame to the model.
type LineMsg struct {
	Line string
}

// StateMsg reports a connection state transition to the model.
type StateMsg struct {
	State client.State
}

// Sender is the part of *tea.Program used by Feed.
type Sender interface {
	Send(msg tea.Msg)
}

// Feed bridges the controller callbacks into a running program. Append and
// Observe never block: messages are queued and delivered in order by Run.
type Feed struct {
	mu     sync.Mutex
	queue  []tea.Msg
	notify chan struct{}
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{notify: make(chan struct{}, 1)}
}

// Append queues an inbound line. It implements client.Sink.
func (f *Feed) Append(line string) {
	f.push(LineMsg{Line: line})
}

// Observe queues a state change. Pass it to client.WithStateObserver.
func (f *Feed) Observe(s client.State) {
	f.push(StateMsg{State: s})
}

func (f *Feed) push(msg tea.Msg) {
	f.mu.Lock()
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Run delivers queued messages to s until ctx is done.
func (f *Feed) Run(ctx context.Context, s Sender) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.notify:
		}

		f.mu.Lock()
		batch := f.queue
		f.queue = nil
		f.mu.Unlock()

		for _, msg := range batch {
			s.Send(msg)
		}
	}
}
