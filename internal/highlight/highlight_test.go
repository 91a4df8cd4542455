package highlight

import (
	"reflect"
	"strings"
	"testing"
)

func brackets(s string) string { return "[[" + s + "]]" }

func TestMarkCaseInsensitive(t *testing.T) {
	res := Mark("Done there\nnothing\nnot done yet", "done", brackets)

	if res.Count != 2 {
		t.Fatalf("expected 2 matches, got %d", res.Count)
	}
	if !reflect.DeepEqual(res.Lines, []int{0, 2}) {
		t.Fatalf("unexpected lines: %#v", res.Lines)
	}
	if !strings.Contains(res.Text, "[[Done]]") || !strings.Contains(res.Text, "[[done]]") {
		t.Fatalf("wrapper not applied: %q", res.Text)
	}
}

func TestMarkKeepsEscapeSequences(t *testing.T) {
	res := Mark("a \x1b[31mhello\x1b[0m b", "hello", func(s string) string { return "<" + s + ">" })
	if res.Count != 1 {
		t.Fatalf("expected 1 match, got %d", res.Count)
	}
	if !strings.Contains(res.Text, "\x1b[31m<hello>\x1b[0m") {
		t.Fatalf("escape sequences disturbed: %q", res.Text)
	}
}

func TestMarkSplitMatchFindsLineOnly(t *testing.T) {
	res := Mark("he\x1b[31mll\x1b[0mo", "hello", brackets)
	if res.Count != 0 {
		t.Fatalf("expected no wrapped matches, got %d", res.Count)
	}
	if !reflect.DeepEqual(res.Lines, []int{0}) {
		t.Fatalf("expected the line to be reported, got %#v", res.Lines)
	}
}

func TestMarkEmptyQuery(t *testing.T) {
	in := "unchanged"
	if res := Mark(in, "  ", brackets); res.Text != in || res.Count != 0 {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestLinesNonASCII(t *testing.T) {
	got := Lines("Ünïcode line\nplain\n\x1b[1mPLAIN\x1b[0m", "plain")
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("unexpected lines: %#v", got)
	}
}
