package monitor

import (
	"context"
	"errors"
	"time"
)

// Event is a new assistant message detected in a transcript log.
type Event struct {
	SessionID   string    `json:"session_id"`
	ProjectPath string    `json:"project_path"`
	Text        string    `json:"text"`
	MessageID   string    `json:"message_id,omitempty"`
	FilePath    string    `json:"file_path"`
	Timestamp   time.Time `json:"timestamp"`
}

// Preview is the first n characters of the text on a single line.
func (e Event) Preview(n int) string {
	r := []rune(e.Text)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// Consumer receives events one at a time, in detection order.
type Consumer interface {
	HandleMessage(ctx context.Context, ev Event) error
}

type ConsumerFunc func(ctx context.Context, ev Event) error

func (f ConsumerFunc) HandleMessage(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type multiConsumer []Consumer

// Multi delivers every event to each consumer in order. A failing consumer
// does not prevent delivery to the ones after it.
func Multi(consumers ...Consumer) Consumer {
	out := make(multiConsumer, 0, len(consumers))
	for _, c := range consumers {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (m multiConsumer) HandleMessage(ctx context.Context, ev Event) error {
	var errs []error
	for _, c := range m {
		if err := c.HandleMessage(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
