package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/atomic"
)

// Mailbox carries messages from device callbacks to the bubbletea event
// loop. Post never blocks, so a pump goroutine is never held up by a busy
// Update; messages that do not fit are dropped and counted.
type Mailbox struct {
	ch      chan tea.Msg
	dropped atomic.Int64
}

func NewMailbox(size int) *Mailbox {
	return &Mailbox{ch: make(chan tea.Msg, max(size, 1))}
}

// Post queues msg and reports whether it fit.
func (b *Mailbox) Post(msg tea.Msg) bool {
	select {
	case b.ch <- msg:
		return true
	default:
		b.dropped.Inc()
		return false
	}
}

// Dropped returns how many messages did not fit.
func (b *Mailbox) Dropped() int64 {
	return b.dropped.Load()
}

// Run forwards queued messages to send, in order, until ctx is done. send
// is usually tea.Program.Send and may block.
func (b *Mailbox) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.ch:
			send(msg)
		}
	}
}
