// Package highlight marks query matches inside glamour-rendered text without
// disturbing its escape sequences.
package highlight

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var csi = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text  string
	Count int
	// Lines holds the zero-based index of every line with at least one match.
	Lines []int
}

// Mark wraps each case-insensitive occurrence of query. Matching happens on
// visible text only; an occurrence split by an escape sequence is counted in
// Lines but left unwrapped.
func Mark(rendered, query string, wrap func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: rendered}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}
	needle := foldASCII(query)

	lines := strings.Split(rendered, "\n")
	var res Result
	for i, line := range lines {
		if !strings.Contains(foldASCII(ansi.Strip(line)), needle) {
			continue
		}
		res.Lines = append(res.Lines, i)
		marked, n := markLine(line, needle, wrap)
		lines[i] = marked
		res.Count += n
	}
	res.Text = strings.Join(lines, "\n")
	return res
}

// Lines reports which lines of rendered contain query in their visible text.
func Lines(rendered, query string) []int {
	needle := foldASCII(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	var out []int
	for i, line := range strings.Split(rendered, "\n") {
		if strings.Contains(foldASCII(ansi.Strip(line)), needle) {
			out = append(out, i)
		}
	}
	return out
}

func markLine(line, needle string, wrap func(string) string) (string, int) {
	var out strings.Builder
	total := 0
	pos := 0
	for _, seq := range csi.FindAllStringIndex(line, -1) {
		n := markPlain(&out, line[pos:seq[0]], needle, wrap)
		total += n
		out.WriteString(line[seq[0]:seq[1]])
		pos = seq[1]
	}
	total += markPlain(&out, line[pos:], needle, wrap)
	return out.String(), total
}

func markPlain(out *strings.Builder, s, needle string, wrap func(string) string) int {
	folded := foldASCII(s)
	count := 0
	start := 0
	for {
		rel := strings.Index(folded[start:], needle)
		if rel < 0 {
			out.WriteString(s[start:])
			return count
		}
		idx := start + rel
		end := idx + len(needle)
		out.WriteString(s[start:idx])
		out.WriteString(wrap(s[idx:end]))
		count++
		start = end
	}
}

// foldASCII lowercases ASCII letters only, so byte offsets in the result line
// up with the input.
func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
