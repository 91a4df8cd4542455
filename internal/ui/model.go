// Package ui shows detected assistant messages in the terminal, either as a
// bubbletea live feed or as plain rendered output.
package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"ccwatch/internal/clipboard"
	"ccwatch/internal/config"
	"ccwatch/internal/highlight"
	"ccwatch/internal/monitor"
)

const defaultMaxEvents = 500

type Options struct {
	GlamourStyle string
	// MaxEvents bounds how many messages the feed keeps; the oldest go first.
	MaxEvents int
	Copy      func(ctx context.Context, text string) error
}

// EventMsg carries a detected message into the program.
type EventMsg monitor.Event

type renderMsg struct {
	eventKey string
	cacheKey string
	rendered string
	nonce    int
}

type copyMsg struct {
	err error
}

type eventItem struct {
	ev monitor.Event
}

func (i eventItem) Title() string {
	return projectLabel(i.ev.ProjectPath) + " · " + shortID(i.ev.SessionID)
}

func (i eventItem) Description() string {
	return i.ev.Timestamp.Local().Format("15:04:05") + "  " + firstLine(i.ev.Text)
}

func (i eventItem) FilterValue() string {
	return strings.ToLower(i.ev.Text + " " + i.ev.ProjectPath + " " + i.ev.SessionID)
}

type Model struct {
	opts Options

	list     list.Model
	viewport viewport.Model
	help     help.Model
	filter   textinput.Model
	keys     keyMap

	width  int
	height int

	events      []monitor.Event // newest first
	follow      bool
	filterMode  bool
	filterQuery string
	focusOnList bool
	selectedKey string

	rendered    map[string]string
	rendering   bool
	renderNonce int
	matchLines  []int
	matchIndex  int

	status string
	err    error
}

func NewModel(opts Options) Model {
	if opts.GlamourStyle == "" {
		opts.GlamourStyle = config.DefaultGlamourStyle
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = defaultMaxEvents
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.Copy
	}

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Assistant messages"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(60, 20)
	vp.SetContent(waitingText)

	ti := textinput.New()
	ti.Placeholder = "Filter messages..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	return Model{
		opts:        opts,
		list:        l,
		viewport:    vp,
		help:        help.New(),
		filter:      ti,
		keys:        defaultKeys(),
		follow:      true,
		focusOnList: true,
		rendered:    make(map[string]string),
		matchIndex:  -1,
	}
}

const (
	waitingText  = "Waiting for assistant messages..."
	noMatchText  = "No messages match the filter."
	renderingTxt = "Rendering..."
)

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		cmds = append(cmds, m.renderSelected())

	case EventMsg:
		prev := m.selectedKey
		m.addEvent(monitor.Event(msg))
		if m.follow {
			m.selectedKey = ""
		}
		m.applyItems()
		if m.selectedKey != prev {
			cmds = append(cmds, m.renderSelected())
		}

	case renderMsg:
		if msg.nonce != m.renderNonce {
			break
		}
		m.rendering = false
		m.rendered[msg.cacheKey] = msg.rendered
		if msg.eventKey == m.selectedKey {
			m.setViewport(msg.rendered)
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.err = nil
			m.status = "Copied message to clipboard"
		}

	case tea.KeyMsg:
		if m.filterMode {
			return m.updateFilter(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Filter):
			m.filterMode = true
			m.filter.SetValue(m.filterQuery)
			m.filter.CursorEnd()
			return m, m.filter.Focus()
		case key.Matches(msg, m.keys.Esc):
			if m.filterQuery != "" {
				m.setFilter("")
				return m, m.renderSelected()
			}
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			m.focusOnList = !m.focusOnList
			return m, nil
		case key.Matches(msg, m.keys.FocusLeft):
			m.focusOnList = true
			return m, nil
		case key.Matches(msg, m.keys.FocusRight):
			m.focusOnList = false
			return m, nil
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
			return m, nil
		case key.Matches(msg, m.keys.NextMatch):
			m.jumpToMatch(1)
			return m, nil
		case key.Matches(msg, m.keys.PrevMatch):
			m.jumpToMatch(-1)
			return m, nil
		case key.Matches(msg, m.keys.Follow):
			m.follow = !m.follow
			if m.follow {
				m.selectedKey = ""
				m.applyItems()
				return m, m.renderSelected()
			}
			return m, nil
		case key.Matches(msg, m.keys.Copy):
			return m, m.copyCmd()
		}

		if m.focusOnList {
			prev := m.selectedKey
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			cmds = append(cmds, cmd)
			m.selectedKey = m.currentSelectedKey()
			if m.selectedKey != prev {
				m.follow = m.list.Index() == 0
				cmds = append(cmds, m.renderSelected())
			}
		} else {
			switch msg.String() {
			case "up", "k":
				m.viewport.LineUp(1)
			case "down", "j":
				m.viewport.LineDown(1)
			}
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filterMode = false
		m.filter.Blur()
		m.setFilter("")
		return m, m.renderSelected()
	case "enter":
		m.filterMode = false
		m.filter.Blur()
		return m, nil
	}

	before := strings.TrimSpace(m.filter.Value())
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if after := strings.TrimSpace(m.filter.Value()); after != before {
		m.setFilter(after)
		return m, tea.Batch(cmd, m.renderSelected())
	}
	return m, cmd
}

func (m *Model) setFilter(q string) {
	m.filterQuery = q
	if q == "" {
		m.filter.SetValue("")
	}
	m.applyItems()
}

func (m *Model) addEvent(ev monitor.Event) {
	m.events = append([]monitor.Event{ev}, m.events...)
	if len(m.events) > m.opts.MaxEvents {
		m.events = m.events[:m.opts.MaxEvents]
	}
}

func (m Model) visible() []monitor.Event {
	q := strings.ToLower(strings.TrimSpace(m.filterQuery))
	if q == "" {
		return m.events
	}
	out := make([]monitor.Event, 0, len(m.events))
	for _, ev := range m.events {
		if strings.Contains(eventItem{ev: ev}.FilterValue(), q) {
			out = append(out, ev)
		}
	}
	return out
}

// applyItems rebuilds the list and keeps the selection on the same message
// when it is still visible, otherwise on the newest one.
func (m *Model) applyItems() {
	shown := m.visible()
	items := make([]list.Item, 0, len(shown))
	selectIdx := 0
	for i, ev := range shown {
		items = append(items, eventItem{ev: ev})
		if eventKey(ev) == m.selectedKey {
			selectIdx = i
		}
	}
	m.list.SetItems(items)

	if len(shown) == 0 {
		m.selectedKey = ""
		m.clearMatches()
		if len(m.events) == 0 {
			m.viewport.SetContent(waitingText)
		} else {
			m.viewport.SetContent(noMatchText)
		}
		return
	}
	m.list.Select(selectIdx)
	m.selectedKey = eventKey(shown[selectIdx])
}

func (m Model) currentSelectedKey() string {
	item, ok := m.list.SelectedItem().(eventItem)
	if !ok {
		return ""
	}
	return eventKey(item.ev)
}

func (m Model) selectedEvent() (monitor.Event, bool) {
	item, ok := m.list.SelectedItem().(eventItem)
	if !ok {
		return monitor.Event{}, false
	}
	return item.ev, true
}

func (m *Model) renderSelected() tea.Cmd {
	ev, ok := m.selectedEvent()
	if !ok {
		m.clearMatches()
		return nil
	}
	evKey := eventKey(ev)
	cacheKey := fmt.Sprintf("%s|w=%d", evKey, m.viewport.Width)
	if rendered, ok := m.rendered[cacheKey]; ok {
		m.setViewport(rendered)
		return nil
	}

	m.rendering = true
	m.renderNonce++
	nonce := m.renderNonce
	m.viewport.SetContent(renderingTxt)
	wrap := m.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	style := m.opts.GlamourStyle
	return func() tea.Msg {
		return renderMsg{
			eventKey: evKey,
			cacheKey: cacheKey,
			rendered: renderMarkdown(ev.Text, style, wrap),
			nonce:    nonce,
		}
	}
}

func (m *Model) setViewport(rendered string) {
	content := rendered
	m.clearMatches()
	if q := strings.TrimSpace(m.filterQuery); q != "" {
		res := highlight.Mark(rendered, q, func(s string) string { return matchStyle.Render(s) })
		content = res.Text
		m.matchLines = res.Lines
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
	if len(m.matchLines) > 0 {
		m.matchIndex = 0
		m.viewport.SetYOffset(m.matchLines[0])
	}
}

func (m *Model) clearMatches() {
	m.matchLines = nil
	m.matchIndex = -1
}

func (m *Model) jumpToMatch(delta int) {
	if len(m.matchLines) == 0 {
		m.status = "No filter matches in message"
		return
	}
	m.matchIndex = (m.matchIndex + delta + len(m.matchLines)) % len(m.matchLines)
	m.viewport.SetYOffset(m.matchLines[m.matchIndex])
	m.status = fmt.Sprintf("Match %d/%d", m.matchIndex+1, len(m.matchLines))
}

func (m Model) copyCmd() tea.Cmd {
	ev, ok := m.selectedEvent()
	if !ok {
		return nil
	}
	copyFn := m.opts.Copy
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyMsg{err: copyFn(ctx, ev.Text)}
	}
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()
	bodyHeight := m.height - 2
	if bodyHeight < 8 {
		bodyHeight = 8
	}
	m.list.SetSize(left-2, bodyHeight-2)
	m.viewport.Width = right - 2
	m.viewport.Height = bodyHeight - 2
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}
	left, right := m.paneWidths()
	leftPane := panelStyle(m.focusOnList).Width(left).Height(m.height - 2).Render(m.list.View())
	rightPane := panelStyle(!m.focusOnList).Width(right).Height(m.height - 2).Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	helpView := m.help.View(m.keys)
	if m.filterMode {
		helpView = m.filter.View() + "  " + helpView
	} else if m.filterQuery != "" {
		helpView = "filter: " + m.filterQuery + "  " + helpView
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.statusLine(), body, helpView)
}

func (m Model) statusLine() string {
	status := fmt.Sprintf("messages=%d", len(m.events))
	if ev, ok := m.selectedEvent(); ok {
		status += fmt.Sprintf("  session=%s  project=%s  at=%s",
			shortID(ev.SessionID),
			projectLabel(ev.ProjectPath),
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
		)
	}
	if m.filterQuery != "" {
		status += "  [filter]"
		if len(m.matchLines) > 0 {
			status += fmt.Sprintf("  [match %d/%d]", m.matchIndex+1, len(m.matchLines))
		}
	}
	if m.follow {
		status += "  [follow]"
	}
	if m.rendering {
		status += "  [rendering]"
	}
	if s := strings.TrimSpace(m.status); s != "" {
		status += "  " + shorten(s, 80)
	}
	if m.err != nil {
		status += "  err=" + m.err.Error()
	}
	if m.width > 0 {
		status = shorten(status, m.width-2)
	}
	return statusStyle.Render(status)
}

func (m Model) paneWidths() (int, int) {
	left := m.width / 3
	if left < 32 {
		left = 32
	}
	if left > m.width-32 {
		left = m.width - 32
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left - 1
	if right < 20 {
		right = 20
	}
	return left, right
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func renderMarkdown(text, style string, wrap int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func eventKey(ev monitor.Event) string {
	return ev.SessionID + "|" + ev.MessageID + "|" + ev.Timestamp.Format(time.RFC3339Nano)
}

func projectLabel(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == "/" || base == "" {
		return "unknown"
	}
	return base
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return shorten(s, 80)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || ansi.StringWidth(s) <= n {
		return s
	}
	return ansi.Truncate(s, n, "…")
}
