package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BlockType identifies one typed unit of structured message content.
type BlockType int

const (
	BlockUnknown BlockType = iota
	BlockText
	BlockThinking
	BlockToolUse
	BlockToolResult
)

func (t BlockType) String() string {
	switch t {
	case BlockText:
		return "text"
	case BlockThinking:
		return "thinking"
	case BlockToolUse:
		return "tool_use"
	case BlockToolResult:
		return "tool_result"
	default:
		return "unknown"
	}
}

// Block is a decoded content block. Only the fields relevant to Type are set;
// RawType keeps the discriminator as written so unknown blocks stay inspectable.
type Block struct {
	Type     BlockType
	RawType  string
	Text     string
	Thinking string
	ToolName string
	ToolID   string
	Input    json.RawMessage
	Result   string
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	ToolUseID string          `json:"tool_use_id"`
	Input     json.RawMessage `json:"input"`
	Content   json.RawMessage `json:"content"`
}

// UnmarshalJSON never fails: anything that does not decode into a known block
// shape becomes BlockUnknown and is ignored by display extraction.
func (b *Block) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = Block{Type: BlockText, RawType: "text", Text: s}
		return nil
	}

	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		*b = Block{Type: BlockUnknown}
		return nil
	}

	switch w.Type {
	case "text":
		*b = Block{Type: BlockText, RawType: w.Type, Text: w.Text}
	case "thinking":
		*b = Block{Type: BlockThinking, RawType: w.Type, Thinking: w.Thinking}
	case "tool_use":
		*b = Block{Type: BlockToolUse, RawType: w.Type, ToolName: w.Name, ToolID: w.ID, Input: w.Input}
	case "tool_result":
		*b = Block{Type: BlockToolResult, RawType: w.Type, ToolID: w.ToolUseID, Result: toolResultText(w.Content)}
	default:
		*b = Block{Type: BlockUnknown, RawType: w.Type}
	}
	return nil
}

func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// Content is message content: either a plain string or an ordered list of blocks.
type Content struct {
	Text       string
	Blocks     []Block
	structured bool
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*c = Content{}
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &c.Text)
	case '[':
		if err := json.Unmarshal(trimmed, &c.Blocks); err != nil {
			return err
		}
		c.structured = true
	}
	return nil
}

// IsStructured reports whether the content arrived as a block list.
func (c Content) IsStructured() bool {
	return c.structured
}

// DisplayText joins the text blocks in order. Thinking, tool invocations,
// tool results and unknown blocks never reach the display text.
func (c Content) DisplayText() string {
	if !c.structured {
		return c.Text
	}
	texts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		if b.Type == BlockText && b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (c Content) ToolNames() []string {
	var names []string
	for _, b := range c.Blocks {
		if b.Type == BlockToolUse && b.ToolName != "" {
			names = append(names, b.ToolName)
		}
	}
	return names
}
