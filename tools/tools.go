package tools

import (
	"context"
	"errors"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/tooldebug/analysis"
	"github.com/jonwraymond/tooldebug/exec"
	"github.com/jonwraymond/tooldebug/failures"
	"github.com/jonwraymond/tooldebug/pipeline"
	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/sandbox"
	"github.com/jonwraymond/tooldebug/window"
)

// Namespace is the tool namespace; tool IDs are "debug:<name>".
const Namespace = "debug"

// Tool argument defaults.
const (
	DefaultMaxOutputLines = run.DefaultMaxOutputLines
	DefaultTimeoutSeconds = run.DefaultTimeoutSeconds
	DefaultFailureLimit   = failures.DefaultLimit
	DefaultRadius         = window.DefaultRadius
)

// Errors returned by New.
var (
	ErrRootRequired     = errors.New("tools: Root is required")
	ErrRunnerRequired   = errors.New("tools: Runner is required")
	ErrAnalyzerRequired = errors.New("tools: Analyzer is required")
	ErrDebuggerRequired = errors.New("tools: Debugger is required")
)

// Debugger runs the full debug pipeline.
type Debugger interface {
	Debug(ctx context.Context, params pipeline.Params) pipeline.Result
}

// Deps are the components the tools delegate to.
type Deps struct {
	Root     *sandbox.Root
	Runner   pipeline.TestRunner
	Analyzer analysis.Analyzer
	Debugger Debugger
}

func (d *Deps) validate() error {
	switch {
	case d.Root == nil:
		return ErrRootRequired
	case d.Runner == nil:
		return ErrRunnerRequired
	case d.Analyzer == nil:
		return ErrAnalyzerRequired
	case d.Debugger == nil:
		return ErrDebuggerRequired
	}
	return nil
}

// Set is the debug tool set bound to its dependencies.
type Set struct {
	deps Deps
}

// New returns a Set for deps.
func New(deps Deps) (*Set, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Set{deps: deps}, nil
}

// Register adds every tool in the set to e.
func (s *Set) Register(e *exec.Exec) error {
	for _, def := range s.Definitions() {
		if err := e.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Definitions returns the tool definitions in a stable order.
func (s *Set) Definitions() []exec.ToolDef {
	return []exec.ToolDef{
		{
			Tool: tool("ping", "Liveness check. Returns pong.", objectSchema(nil), readOnly, "health"),
			Doc:  tooldoc.DocEntry{Summary: "Returns {ok: true, msg: \"pong\"}."},
			Handler: func(context.Context, map[string]any) (any, error) {
				return map[string]any{"ok": true, "msg": "pong"}, nil
			},
		},
		{
			Tool: tool("resolve_path",
				"Resolve a path against the project root. Absolute paths outside the root need MCP_ALLOWED_ROOTS.",
				objectSchema(map[string]any{
					"path": prop("string", "Relative to the project root, or absolute."),
				}, "path"), readOnly, "path", "sandbox"),
			Doc: tooldoc.DocEntry{
				Summary: "Returns the canonical absolute path or the reason it was rejected.",
				Notes:   "Relative paths may not escape the root. Symlinks are resolved before the containment check.",
			},
			Handler: s.resolvePath,
		},
		{
			Tool: tool("run_pytest",
				"Run pytest on a file or directory and return the tail of its output.",
				objectSchema(map[string]any{
					"target":           prop("string", "File or directory. Defaults to the configured target."),
					"max_output_lines": intProp("Tail length, clamped to [1, 2000].", DefaultMaxOutputLines),
					"timeout_seconds":  intProp("Run timeout, clamped to [5, 300].", DefaultTimeoutSeconds),
				}), nil, "pytest", "tests"),
			Doc: tooldoc.DocEntry{
				Summary: "Runs python -m pytest -q --maxfail=1 with plugin autoload disabled.",
				Notes:   "A failing test run is ok with a non-zero exit_code. ok is false only when pytest could not run or timed out.",
				Examples: []tooldoc.ToolExample{
					{Title: "Run the default target", Args: map[string]any{}},
					{Title: "Run one file", Args: map[string]any{"target": "demo_project/test_calc.py", "timeout_seconds": 60}},
				},
			},
			Handler: s.runPytest,
		},
		{
			Tool: tool("extract_failures",
				"Extract file.py:line: failure locations from pytest output.",
				objectSchema(map[string]any{
					"pytest_output": prop("string", "Raw pytest output."),
					"limit":         intProp("Maximum records, clamped to [1, 50].", DefaultFailureLimit),
					"base_dir":      prop("string", "Directory pytest ran in, used to resolve relative paths."),
				}, "pytest_output"), readOnly, "pytest", "failures"),
			Doc: tooldoc.DocEntry{
				Summary: "Returns unique (path, line) records in document order with open_context hints.",
				Notes:   "path_for_open_context and open_context_base_dir can be passed straight to open_context.",
			},
			Handler: s.extractFailures,
		},
		{
			Tool: tool("open_context",
				"Return numbered source lines around a line of a file.",
				objectSchema(map[string]any{
					"path":     prop("string", "File path, relative or absolute."),
					"line":     intProp("Focus line, clamped into the file.", 1),
					"radius":   intProp("Lines either side, clamped to [5, 120].", DefaultRadius),
					"base_dir": prop("string", "Resolve a relative path against this directory first."),
				}, "path", "line"), readOnly, "source", "context"),
			Doc: tooldoc.DocEntry{
				Summary: "Returns a window of {line, text} rows and the enclosing Python scope when known.",
				Notes:   "Invalid UTF-8 is replaced rather than rejected.",
			},
			Handler: s.openContext,
		},
		{
			Tool: tool("analyze_error",
				"Ask the configured language model to explain a test failure and suggest a fix.",
				objectSchema(map[string]any{
					"error_message": prop("string", "Failing test output."),
					"code_context":  prop("string", "Numbered source lines around the failure."),
				}, "error_message"), nil, "llm", "analysis"),
			Doc: tooldoc.DocEntry{
				Summary: "Returns the model's explanation, or ok=false when no API key is configured.",
			},
			Handler: s.analyzeError,
		},
		{
			Tool: tool("debug_project",
				"Run pytest, locate the first failure, open its source and explain it.",
				objectSchema(map[string]any{
					"target":           prop("string", "File or directory to test."),
					"max_output_lines": intProp("Tail length.", pipeline.DefaultMaxOutputLines),
					"timeout_seconds":  intProp("Run timeout.", pipeline.DefaultTimeoutSeconds),
					"failure_limit":    intProp("Failures to extract; only the first is analyzed.", pipeline.DefaultFailureLimit),
					"radius":           intProp("Context lines either side.", pipeline.DefaultRadius),
				}), nil, "pytest", "pipeline"),
			Doc: tooldoc.DocEntry{
				Summary: "Runs the debug pipeline and reports the stage it stopped at.",
				Notes:   "ok is false only when the tests could not be run. Later stages report soft failures with a msg.",
			},
			Handler: s.debugProject,
		},
	}
}

func (s *Set) resolvePath(_ context.Context, args map[string]any) (any, error) {
	p, err := s.deps.Root.Resolve(stringArg(args, "path"))
	if err != nil {
		return failure(err), nil
	}
	return map[string]any{"ok": true, "path": p}, nil
}

func (s *Set) runPytest(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Runner.Run(ctx, run.Request{
		Target:         stringArg(args, "target"),
		MaxOutputLines: intArg(args, "max_output_lines", DefaultMaxOutputLines),
		TimeoutSeconds: intArg(args, "timeout_seconds", DefaultTimeoutSeconds),
	}), nil
}

func (s *Set) extractFailures(_ context.Context, args map[string]any) (any, error) {
	res, err := failures.Extract(
		stringArg(args, "pytest_output"),
		intArg(args, "limit", DefaultFailureLimit),
		stringArg(args, "base_dir"),
		s.deps.Root,
	)
	if err != nil {
		return failure(err), nil
	}
	return map[string]any{"ok": true, "count": res.Count, "failures": res.Failures}, nil
}

// contextResult is an open window with the ok flag alongside its fields.
type contextResult struct {
	OK bool `json:"ok"`
	window.Window
}

func (s *Set) openContext(_ context.Context, args map[string]any) (any, error) {
	w, err := window.Open(
		stringArg(args, "path"),
		intArg(args, "line", 1),
		intArg(args, "radius", DefaultRadius),
		stringArg(args, "base_dir"),
		s.deps.Root,
	)
	if err != nil {
		return failure(err), nil
	}
	return contextResult{OK: true, Window: w}, nil
}

func (s *Set) analyzeError(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Analyzer.Analyze(ctx, stringArg(args, "error_message"), stringArg(args, "code_context")), nil
}

func (s *Set) debugProject(ctx context.Context, args map[string]any) (any, error) {
	return s.deps.Debugger.Debug(ctx, pipeline.Params{
		Target:         stringArg(args, "target"),
		MaxOutputLines: intArg(args, "max_output_lines", pipeline.DefaultMaxOutputLines),
		TimeoutSeconds: intArg(args, "timeout_seconds", pipeline.DefaultTimeoutSeconds),
		FailureLimit:   intArg(args, "failure_limit", pipeline.DefaultFailureLimit),
		Radius:         intArg(args, "radius", pipeline.DefaultRadius),
	}), nil
}

func failure(err error) map[string]any {
	return map[string]any{"ok": false, "error": err.Error()}
}

var readOnly = &mcp.ToolAnnotations{ReadOnlyHint: true}

func tool(name, description string, schema map[string]any, annotations *mcp.ToolAnnotations, tags ...string) model.Tool {
	return model.Tool{
		Tool: mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: schema,
			Annotations: annotations,
		},
		Namespace: Namespace,
		Tags:      model.NormalizeTags(tags),
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func intProp(description string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "default": def}
}
