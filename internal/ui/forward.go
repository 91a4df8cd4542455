package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"ccwatch/internal/monitor"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Forwarder is a monitor consumer that feeds events into a running program.
type Forwarder struct {
	sender Sender
}

func NewForwarder(sender Sender) *Forwarder {
	return &Forwarder{sender: sender}
}

func (f *Forwarder) HandleMessage(ctx context.Context, ev monitor.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sender.Send(EventMsg(ev))
	return nil
}
