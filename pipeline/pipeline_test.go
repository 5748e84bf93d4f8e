package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/tooldebug/analysis"
	"github.com/jonwraymond/tooldebug/failures"
	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/sandbox"
	"github.com/jonwraymond/tooldebug/window"
)

type fakeRunner struct {
	result run.Result
	got    run.Request
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, req run.Request) run.Result {
	f.calls++
	f.got = req
	return f.result
}

type fakeAnalyzer struct {
	result      analysis.Result
	calls       int
	errorText   string
	codeContext string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, errorMessage, codeContext string) analysis.Result {
	f.calls++
	f.errorText = errorMessage
	f.codeContext = codeContext
	return f.result
}

type fixture struct {
	root     *sandbox.Root
	runner   *fakeRunner
	analyzer *fakeAnalyzer
	metrics  *Metrics
	pipeline *Pipeline
}

func newFixture(t *testing.T, tests run.Result) *fixture {
	t.Helper()
	root, err := sandbox.NewRoot(t.TempDir(), sandbox.WithEnv(sandbox.MapEnv(nil)))
	require.NoError(t, err)

	f := &fixture{
		root:     root,
		runner:   &fakeRunner{result: tests},
		analyzer: &fakeAnalyzer{result: analysis.Result{OK: true, Analysis: "expected 4, add returns 3"}},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	f.pipeline, err = New(Config{
		Root:     root,
		Runner:   f.runner,
		Analyzer: f.analyzer,
		Metrics:  f.metrics,
		NewRunID: func() string { return "run-1" },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(f.root.Dir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestNew_Validation(t *testing.T) {
	root, err := sandbox.NewRoot(t.TempDir())
	require.NoError(t, err)

	_, err = New(Config{Runner: &fakeRunner{}, Analyzer: &fakeAnalyzer{}})
	assert.ErrorIs(t, err, ErrRootRequired)
	_, err = New(Config{Root: root, Analyzer: &fakeAnalyzer{}})
	assert.ErrorIs(t, err, ErrRunnerRequired)
	_, err = New(Config{Root: root, Runner: &fakeRunner{}})
	assert.ErrorIs(t, err, ErrAnalyzerRequired)
}

func TestDebug_RunFailed(t *testing.T) {
	f := newFixture(t, run.Result{OK: false, Error: "pytest timed out (60s)"})

	res := f.pipeline.Debug(context.Background(), Params{Target: "demo_project"})

	assert.False(t, res.OK)
	assert.Equal(t, StageRunTests, res.Stage)
	out, ok := res.Outcome.(RunFailed)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.Equal(t, "pytest timed out (60s)", out.Tests.Error)
	assert.Zero(t, f.analyzer.calls)
}

func TestDefaultParams(t *testing.T) {
	f := newFixture(t, run.Result{OK: true, ExitCode: 0})

	f.pipeline.Debug(context.Background(), DefaultParams("demo_project"))

	assert.Equal(t, run.Request{Target: "demo_project", MaxOutputLines: 1200, TimeoutSeconds: 60}, f.runner.got)
}

func TestDebug_ZeroParamsAreClamped(t *testing.T) {
	f := newFixture(t, run.Result{})
	var src strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&src, "x%d = %d\n", i, i)
	}
	f.write(t, "big.py", src.String())
	f.runner.result = run.Result{OK: true, ExitCode: 1, OutputTail: "big.py:50: AssertionError", CWD: f.root.Dir()}

	res := f.pipeline.Debug(context.Background(), Params{Radius: 0, TimeoutSeconds: 0, MaxOutputLines: 0})

	assert.Equal(t, run.Request{}, f.runner.got)
	out, ok := res.Outcome.(Analyzed)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.Equal(t, 50, out.Context.FocusLine)
	assert.Equal(t, 45, out.Context.StartLine)
	assert.Equal(t, 55, out.Context.EndLine)
}

func TestDebug_AllPassed(t *testing.T) {
	f := newFixture(t, run.Result{OK: true, ExitCode: 0, OutputTail: "3 passed"})

	res := f.pipeline.Debug(context.Background(), Params{})

	assert.True(t, res.OK)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, MsgAllPassed, res.Message)
	assert.IsType(t, AllPassed{}, res.Outcome)
	assert.Zero(t, f.analyzer.calls)
	assert.Equal(t, "run-1", res.RunID)
}

func TestDebug_NoLocation(t *testing.T) {
	f := newFixture(t, run.Result{OK: true, ExitCode: 2, OutputTail: "ERROR: collection failed"})

	res := f.pipeline.Debug(context.Background(), Params{})

	assert.True(t, res.OK)
	assert.Equal(t, StageExtractFailures, res.Stage)
	assert.Equal(t, MsgNoFailureLocation, res.Message)
	out, ok := res.Outcome.(NoFailures)
	require.True(t, ok)
	assert.NoError(t, out.Err)
	assert.Zero(t, out.Extract.Count)
}

func TestDebug_EmptyOutput(t *testing.T) {
	f := newFixture(t, run.Result{OK: true, ExitCode: 1, OutputTail: ""})

	res := f.pipeline.Debug(context.Background(), Params{})

	assert.Equal(t, StageExtractFailures, res.Stage)
	out := res.Outcome.(NoFailures)
	assert.ErrorIs(t, out.Err, failures.ErrEmptyOutput)
}

func TestDebug_ContextUnavailable(t *testing.T) {
	f := newFixture(t, run.Result{OK: true, ExitCode: 1, OutputTail: "t.py:7: AssertionError"})
	f.runner.result.CWD = f.root.Dir()

	res := f.pipeline.Debug(context.Background(), Params{})

	assert.True(t, res.OK)
	assert.Equal(t, StageOpenContext, res.Stage)
	assert.Equal(t, MsgContextUnavailable, res.Message)
	out, ok := res.Outcome.(ContextUnavailable)
	require.True(t, ok)
	assert.ErrorIs(t, out.Err, window.ErrNotFound)
	assert.Equal(t, DebugInfo{UsedPath: "t.py", UsedBaseDir: "", TestCWD: f.root.Dir()}, out.Debug)
	assert.Zero(t, f.analyzer.calls)
}

func TestDebug_Analyzed(t *testing.T) {
	f := newFixture(t, run.Result{})
	f.write(t, "demo_project/tests/test_calc.py", "from calc import add\n\n\ndef test_add():\n    assert add(1, 2) == 4\n")
	output := "F\ndemo_project/tests/test_calc.py:5: AssertionError\n1 failed"
	f.runner.result = run.Result{OK: true, ExitCode: 1, OutputTail: output, CWD: f.root.Dir()}

	res := f.pipeline.Debug(context.Background(), Params{Target: "demo_project", Radius: 5})

	assert.True(t, res.OK)
	assert.Equal(t, StageDone, res.Stage)
	assert.Empty(t, res.Message)
	out, ok := res.Outcome.(Analyzed)
	require.True(t, ok, "outcome %T", res.Outcome)
	assert.Equal(t, 5, out.Failure.Line)
	assert.Equal(t, "demo_project/tests/test_calc.py", out.Failure.PathForOpenContext)
	assert.Equal(t, 5, out.Context.FocusLine)
	assert.Equal(t, "test_add", out.Context.Scope)
	assert.True(t, out.Analysis.OK)

	assert.Equal(t, 1, f.analyzer.calls)
	assert.Equal(t, output, f.analyzer.errorText)
	assert.Equal(t, "1: from calc import add\n2: \n3: \n4: def test_add():\n5:     assert add(1, 2) == 4", f.analyzer.codeContext)
}

func TestDebug_AnalyzerFailureSurfaced(t *testing.T) {
	f := newFixture(t, run.Result{})
	f.write(t, "t.py", "assert False\n")
	f.runner.result = run.Result{OK: true, ExitCode: 1, OutputTail: "t.py:1: AssertionError", CWD: f.root.Dir()}
	f.analyzer.result = analysis.Result{OK: false, Error: "Gemini API Key not configured or model init failed"}

	res := f.pipeline.Debug(context.Background(), Params{})

	assert.True(t, res.OK)
	assert.Equal(t, StageDone, res.Stage)
	out := res.Outcome.(Analyzed)
	assert.False(t, out.Analysis.OK)
	assert.Equal(t, "Gemini API Key not configured or model init failed", out.Analysis.Error)
}

func TestDebug_Metrics(t *testing.T) {
	f := newFixture(t, run.Result{OK: true, ExitCode: 0})

	f.pipeline.Debug(context.Background(), Params{})
	f.pipeline.Debug(context.Background(), Params{})
	f.runner.result = run.Result{OK: false, Error: "boom"}
	f.pipeline.Debug(context.Background(), Params{})

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("done", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.runs.WithLabelValues("run_tests", "false")))
}

func TestResult_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantKeys []string
		check    func(t *testing.T, m map[string]any)
	}{
		{
			name:     "run failed",
			result:   Result{OK: false, Stage: StageRunTests, Outcome: RunFailed{Tests: run.Result{Error: "x"}}},
			wantKeys: []string{"ok", "stage", "run_id", "details"},
		},
		{
			name:     "all passed",
			result:   Result{OK: true, Stage: StageDone, Message: MsgAllPassed, Outcome: AllPassed{}},
			wantKeys: []string{"ok", "stage", "run_id", "msg", "pytest"},
		},
		{
			name: "extract error",
			result: Result{OK: true, Stage: StageExtractFailures, Message: MsgNoFailureLocation,
				Outcome: NoFailures{Err: errors.New("pytest_output is empty")}},
			wantKeys: []string{"ok", "stage", "run_id", "msg", "pytest", "extract"},
			check: func(t *testing.T, m map[string]any) {
				ex := m["extract"].(map[string]any)
				assert.Equal(t, false, ex["ok"])
				assert.Equal(t, "pytest_output is empty", ex["error"])
			},
		},
		{
			name: "context unavailable",
			result: Result{OK: true, Stage: StageOpenContext, Message: MsgContextUnavailable,
				Outcome: ContextUnavailable{Err: errors.New("file not found: t.py"), Debug: DebugInfo{UsedPath: "t.py"}}},
			wantKeys: []string{"ok", "stage", "run_id", "msg", "pytest", "failure", "context", "debug_info"},
			check: func(t *testing.T, m map[string]any) {
				di := m["debug_info"].(map[string]any)
				assert.Equal(t, "t.py", di["used_path"])
			},
		},
		{
			name: "analyzed",
			result: Result{OK: true, Stage: StageDone, Outcome: Analyzed{
				Context: window.Window{Path: "/r/t.py", FocusLine: 3, Lines: []window.Line{{Number: 3, Text: "x"}}},
			}},
			wantKeys: []string{"ok", "stage", "run_id", "pytest", "failure", "context", "analysis"},
			check: func(t *testing.T, m map[string]any) {
				c := m["context"].(map[string]any)
				assert.Equal(t, true, c["ok"])
				assert.Equal(t, "/r/t.py", c["path"])
				assert.EqualValues(t, 3, c["focus_line"])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.result)
			require.NoError(t, err)
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))

			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
			if tt.check != nil {
				tt.check(t, m)
			}
		})
	}
}
