// Package transcript decodes Claude Code session JSONL records and extracts
// the user-facing text of their messages.
package transcript

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindOther     Kind = "other"
)

// Record is one decoded transcript line.
type Record struct {
	Type      string
	Kind      Kind
	Role      string
	Content   Content
	Text      string
	UUID      string
	SessionID string
	Cwd       string
	Timestamp string
	Raw       json.RawMessage
}

type wireMessage struct {
	Role    looseString `json:"role"`
	Content Content     `json:"content"`
}

// Scalar fields are loose so a mistyped value blanks that field instead of
// failing the whole line.
type wireRecord struct {
	Type      looseString  `json:"type"`
	UUID      looseString  `json:"uuid"`
	SessionID looseString  `json:"sessionId"`
	Cwd       looseString  `json:"cwd"`
	Timestamp looseString  `json:"timestamp"`
	Message   *wireMessage `json:"message"`
}

// looseString accepts a JSON string or number; anything else decodes empty.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*s = looseString(n.String())
		return nil
	}
	*s = ""
	return nil
}

// ParseLine decodes a single JSONL line. Blank lines and lines that are not
// valid records return ok == false.
func ParseLine(line []byte) (Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, false
	}

	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return Record{}, false
	}

	rec := Record{
		Type:      string(w.Type),
		UUID:      string(w.UUID),
		SessionID: string(w.SessionID),
		Cwd:       string(w.Cwd),
		Timestamp: string(w.Timestamp),
		Raw:       append(json.RawMessage(nil), line...),
	}
	if w.Message != nil {
		rec.Role = string(w.Message.Role)
		rec.Content = w.Message.Content
	}
	rec.Kind = Classify(rec)
	rec.Text = ExtractDisplayText(rec)
	return rec, true
}

func Classify(rec Record) Kind {
	switch rec.Type {
	case "user":
		return KindUser
	case "assistant":
		return KindAssistant
	default:
		return KindOther
	}
}

// ExtractDisplayText returns the notification text of a record: a plain
// string content verbatim, or the newline-joined text blocks.
func ExtractDisplayText(rec Record) string {
	return rec.Content.DisplayText()
}

func (r Record) IsAssistant() bool {
	return r.Kind == KindAssistant
}

// Time parses the record timestamp. Both RFC3339 strings and unix seconds or
// milliseconds are accepted.
func (r Record) Time() (time.Time, bool) {
	t := strings.TrimSpace(r.Timestamp)
	if t == "" {
		return time.Time{}, false
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		if i > 1_000_000_000_000 {
			return time.UnixMilli(i), true
		}
		return time.Unix(i, 0), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
