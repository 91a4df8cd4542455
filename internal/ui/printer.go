package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"ccwatch/internal/monitor"
)

// Printer is a monitor consumer that writes each message to w as a header
// line followed by the glamour-rendered text.
type Printer struct {
	w     io.Writer
	style string
	width int
	mu    sync.Mutex
}

func NewPrinter(w io.Writer, style string, width int) *Printer {
	if width <= 0 {
		width = 100
	}
	if style == "" {
		style = "notty"
	}
	return &Printer{w: w, style: style, width: width}
}

func (p *Printer) HandleMessage(_ context.Context, ev monitor.Event) error {
	header := fmt.Sprintf("▸ %s  %s · %s",
		ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
		projectLabel(ev.ProjectPath),
		shortID(ev.SessionID),
	)
	body := strings.TrimRight(renderMarkdown(ev.Text, p.style, p.width), "\n")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.w, "%s\n%s\n\n", headerStyle.Render(shorten(header, p.width)), body); err != nil {
		return fmt.Errorf("print message: %w", err)
	}
	return nil
}
