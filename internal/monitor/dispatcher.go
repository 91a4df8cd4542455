package monitor

import (
	"context"
	"fmt"
	"log/slog"
)

// Dispatcher hands events to a single consumer sequentially. Failures are
// logged per event and never stop the rest of the batch.
type Dispatcher struct {
	consumer Consumer
	logger   *slog.Logger
}

func NewDispatcher(consumer Consumer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{consumer: consumer, logger: logger}
}

// Dispatch returns the number of events delivered without error.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) int {
	if d.consumer == nil {
		return 0
	}
	delivered := 0
	for _, ev := range events {
		if err := d.deliver(ctx, ev); err != nil {
			d.logger.Error("message callback error",
				slog.String("session_id", ev.SessionID),
				slog.String("message_id", ev.MessageID),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer panic: %v", r)
		}
	}()
	return d.consumer.HandleMessage(ctx, ev)
}
