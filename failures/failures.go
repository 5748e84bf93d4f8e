// Package failures scans test-runner output for Python file:line locations.
package failures

import (
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonwraymond/tooldebug/sandbox"
)

// Limits applied to Extract.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// ErrEmptyOutput is returned when there is nothing to scan.
var ErrEmptyOutput = errors.New("pytest_output is empty")

// locationPattern matches tokens like "tests/test_calc.py:12:" and
// "C:\proj\test_x.py:7:". The character class is deliberately loose so
// drive-letter paths survive.
var locationPattern = regexp.MustCompile(`([A-Za-z0-9_./\\:\-]+\.py):(\d+):`)

// Record is one distinct failure location.
type Record struct {
	// Path is the path as printed, with backslashes turned into '/'.
	Path string `json:"path"`

	// Line is the 1-based line number from the output.
	Line int `json:"line"`

	// ResolvedPath is the canonical absolute path when one could be
	// computed. It is informational and has not passed the sandbox.
	ResolvedPath string `json:"resolved_path,omitempty"`

	// PathForOpenContext is what to pass to window.Open as the path.
	PathForOpenContext string `json:"path_for_open_context"`

	// OpenContextBaseDir is what to pass to window.Open as the base dir.
	OpenContextBaseDir string `json:"open_context_base_dir"`
}

// Result is the outcome of Extract.
type Result struct {
	Count    int      `json:"count"`
	Failures []Record `json:"failures"`
}

// ClampLimit bounds a requested limit to [1, MaxLimit].
func ClampLimit(limit int) int {
	return min(max(limit, 1), MaxLimit)
}

// Extract returns the distinct (path, line) locations found in text, in
// order of first appearance, stopping after limit records. baseDir, when
// non-empty and accepted by root, anchors relative tokens; a rejected
// baseDir is ignored. Tokens whose line number does not parse are skipped.
func Extract(text string, limit int, baseDir string, root *sandbox.Root) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyOutput
	}
	limit = ClampLimit(limit)

	var safeBase string
	if strings.TrimSpace(baseDir) != "" {
		if p, err := root.Resolve(baseDir); err == nil {
			safeBase = p
		}
	}

	type key struct {
		path string
		line int
	}
	seen := make(map[key]struct{})
	records := make([]Record, 0, limit)

	for _, m := range locationPattern.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		line, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		norm := strings.ReplaceAll(raw, `\`, "/")
		k := key{norm, line}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		records = append(records, locate(raw, norm, line, safeBase, root))
		if len(records) >= limit {
			break
		}
	}

	return Result{Count: len(records), Failures: records}, nil
}

// locate fills in the resolution hints for one token.
func locate(raw, norm string, line int, safeBase string, root *sandbox.Root) Record {
	rec := Record{Path: norm, Line: line}

	var resolved string
	p := sandbox.ExpandHome(raw)
	switch {
	case filepath.IsAbs(p):
		resolved, _ = sandbox.Canonicalize(p)
	case safeBase != "":
		resolved, _ = sandbox.Canonicalize(filepath.Join(safeBase, p))
	}

	if resolved == "" {
		rec.PathForOpenContext = norm
		rec.OpenContextBaseDir = safeBase
		return rec
	}

	rec.ResolvedPath = resolved
	if rel, ok := root.Rel(resolved); ok {
		rec.PathForOpenContext = rel
	} else {
		rec.PathForOpenContext = resolved
	}
	return rec
}
