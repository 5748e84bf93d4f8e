package window

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jonwraymond/tooldebug/sandbox"
	"github.com/jonwraymond/tooldebug/scope"
)

// Radius bounds.
const (
	DefaultRadius = 25
	MinRadius     = 5
	MaxRadius     = 120
)

// Errors returned by Open. Sandbox rejections are returned unchanged.
var (
	// ErrNotFound is returned when the target is missing or not a regular file.
	ErrNotFound = errors.New("file not found")

	// ErrRead is returned when the file exists but cannot be read.
	ErrRead = errors.New("failed reading file")

	// ErrEmptyFile is returned when the file has no lines.
	ErrEmptyFile = errors.New("file is empty")
)

// Line is one numbered source line.
type Line struct {
	Number int    `json:"line"`
	Text   string `json:"text"`
}

// Window is a contiguous slice of a file around a focus line.
type Window struct {
	Path      string `json:"path"`
	FocusLine int    `json:"focus_line"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Lines     []Line `json:"content"`

	// Scope is the dotted name of the def or class enclosing FocusLine,
	// empty when unknown.
	Scope string `json:"scope,omitempty"`
}

// Render returns the window as "<line>: <text>" rows joined by newlines.
func (w Window) Render() string {
	var b strings.Builder
	for i, l := range w.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(l.Number))
		b.WriteString(": ")
		b.WriteString(l.Text)
	}
	return b.String()
}

// ClampRadius bounds a requested radius to [MinRadius, MaxRadius].
func ClampRadius(radius int) int {
	return min(max(radius, MinRadius), MaxRadius)
}

// Open returns the lines of path within radius of focusLine. A relative path
// is anchored at baseDir when baseDir is non-empty, otherwise at the root.
// Both the base and the joined path must pass the sandbox.
func Open(path string, focusLine, radius int, baseDir string, root *sandbox.Root) (Window, error) {
	raw := strings.TrimSpace(path)
	if raw == "" {
		return Window{}, sandbox.ErrEmptyPath
	}

	filePath, err := resolve(raw, baseDir, root)
	if err != nil {
		return Window{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		return Window{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", ErrRead, err)
	}

	text := decode(data)
	lines := SplitLines(text)
	if len(lines) == 0 {
		return Window{}, ErrEmptyFile
	}

	r := ClampRadius(radius)
	focus := min(max(focusLine, 1), len(lines))
	start := max(1, focus-r)
	end := min(len(lines), focus+r)

	w := Window{
		Path:      filePath,
		FocusLine: focus,
		StartLine: start,
		EndLine:   end,
		Lines:     make([]Line, 0, end-start+1),
	}
	for n := start; n <= end; n++ {
		w.Lines = append(w.Lines, Line{Number: n, Text: lines[n-1]})
	}

	if strings.EqualFold(filepath.Ext(filePath), ".py") {
		if row, ok := sourceRow(text, focus); ok {
			if s, ok, err := scope.Enclosing(context.Background(), []byte(text), row); err == nil && ok {
				w.Scope = s.Qualified()
			}
		}
	}
	return w, nil
}

func resolve(raw, baseDir string, root *sandbox.Root) (string, error) {
	p := sandbox.ExpandHome(raw)
	if filepath.IsAbs(p) || strings.TrimSpace(baseDir) == "" {
		return root.Resolve(raw)
	}
	base, err := root.Resolve(baseDir)
	if err != nil {
		return "", err
	}
	candidate, err := sandbox.Canonicalize(filepath.Join(base, p))
	if err != nil {
		return "", err
	}
	return root.Resolve(candidate)
}

// decode converts data to a string, replacing invalid UTF-8 with U+FFFD.
func decode(data []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// SplitLines splits text on the line boundaries Python's str.splitlines
// recognizes. A trailing line break does not produce an empty final line.
func SplitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, text[start:i])
		i += size
		if r == '\r' && i < len(text) && text[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// sourceRow maps a 1-based line as counted by SplitLines onto the 1-based
// row a parser sees, where only "\n" ends a row. It reports false when text
// has bare "\r" line endings, which the two disagree on throughout.
func sourceRow(text string, line int) (int, bool) {
	if strings.Count(text, "\r") != strings.Count(text, "\r\n") {
		return 0, false
	}
	row, n := 1, 1
	for i := 0; i < len(text) && n < line; {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !isLineBreak(r) {
			continue
		}
		if r == '\r' {
			i++ // always followed by '\n'
		}
		if r == '\n' || r == '\r' {
			row++
		}
		n++
	}
	return row, true
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
