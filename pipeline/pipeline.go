package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/tooldebug/analysis"
	"github.com/jonwraymond/tooldebug/failures"
	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/sandbox"
	"github.com/jonwraymond/tooldebug/window"
)

// Default parameter values.
const (
	DefaultMaxOutputLines = 1200
	DefaultTimeoutSeconds = 60
	DefaultFailureLimit   = 1
	DefaultRadius         = 35
)

// Errors returned by New.
var (
	ErrRootRequired     = errors.New("pipeline: Root is required")
	ErrRunnerRequired   = errors.New("pipeline: Runner is required")
	ErrAnalyzerRequired = errors.New("pipeline: Analyzer is required")
)

// TestRunner runs a test suite.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Run must honor cancellation and deadlines.
// - Errors: failures are reported in run.Result, never returned.
type TestRunner interface {
	Run(ctx context.Context, req run.Request) run.Result
}

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Params configures one Debug call. Values are passed through to the
// runner, extractor and windower, which clamp them to their own ranges;
// zero is clamped like any other value. Use DefaultParams for the defaults.
type Params struct {
	Target         string
	MaxOutputLines int
	TimeoutSeconds int
	FailureLimit   int
	Radius         int
}

// DefaultParams returns Params for target with the package defaults.
func DefaultParams(target string) Params {
	return Params{
		Target:         target,
		MaxOutputLines: DefaultMaxOutputLines,
		TimeoutSeconds: DefaultTimeoutSeconds,
		FailureLimit:   DefaultFailureLimit,
		Radius:         DefaultRadius,
	}
}

// Config wires a Pipeline to its collaborators.
type Config struct {
	// Root confines failure resolution and context reads. Required.
	Root *sandbox.Root

	// Runner executes the tests. Required.
	Runner TestRunner

	// Analyzer explains the first failure. Required.
	Analyzer analysis.Analyzer

	// Metrics is optional.
	Metrics *Metrics

	// Logger is optional.
	Logger Logger

	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

func (c *Config) validate() error {
	if c.Root == nil {
		return ErrRootRequired
	}
	if c.Runner == nil {
		return ErrRunnerRequired
	}
	if c.Analyzer == nil {
		return ErrAnalyzerRequired
	}
	return nil
}

// Pipeline runs debug flows. A Pipeline is safe for concurrent use.
type Pipeline struct {
	root     *sandbox.Root
	runner   TestRunner
	analyzer analysis.Analyzer
	metrics  *Metrics
	logger   Logger
	newRunID func() string
}

// New returns a Pipeline for cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		root:     cfg.Root,
		runner:   cfg.Runner,
		analyzer: cfg.Analyzer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		newRunID: cfg.NewRunID,
	}
	if p.logger == nil {
		p.logger = nopLogger{}
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	return p, nil
}

// Debug runs the tests for params.Target and, if they fail, explains the
// first failure.
func (p *Pipeline) Debug(ctx context.Context, params Params) Result {
	runID := p.newRunID()
	start := time.Now()

	res := p.debug(ctx, runID, params)
	res.RunID = runID
	res.Duration = time.Since(start)

	p.metrics.observe(res.Stage, res.OK, res.Duration)
	p.logger.Info("debug run finished",
		"run_id", runID,
		"stage", string(res.Stage),
		"ok", res.OK,
		"duration", res.Duration,
	)
	return res
}

func (p *Pipeline) debug(ctx context.Context, runID string, params Params) Result {
	tests := p.runner.Run(ctx, run.Request{
		Target:         params.Target,
		MaxOutputLines: params.MaxOutputLines,
		TimeoutSeconds: params.TimeoutSeconds,
	})
	if !tests.OK {
		p.logger.Warn("test run failed", "run_id", runID, "error", tests.Error)
		return Result{OK: false, Stage: StageRunTests, Outcome: RunFailed{Tests: tests}}
	}
	if tests.ExitCode == 0 {
		return Result{OK: true, Stage: StageDone, Message: MsgAllPassed, Outcome: AllPassed{Tests: tests}}
	}

	testCWD := strings.TrimSpace(tests.CWD)
	extracted, err := failures.Extract(tests.OutputTail, params.FailureLimit, testCWD, p.root)
	if err != nil || extracted.Count == 0 {
		return Result{
			OK:      true,
			Stage:   StageExtractFailures,
			Message: MsgNoFailureLocation,
			Outcome: NoFailures{Tests: tests, Extract: extracted, Err: err},
		}
	}

	first := extracted.Failures[0]
	ctxPath := strings.TrimSpace(first.PathForOpenContext)
	if ctxPath == "" {
		ctxPath = strings.TrimSpace(first.Path)
	}
	ctxBase := strings.TrimSpace(first.OpenContextBaseDir)

	win, err := window.Open(ctxPath, first.Line, params.Radius, ctxBase, p.root)
	if err != nil {
		p.logger.Warn("could not open failure context", "run_id", runID, "path", ctxPath, "error", err)
		return Result{
			OK:      true,
			Stage:   StageOpenContext,
			Message: MsgContextUnavailable,
			Outcome: ContextUnavailable{
				Tests:   tests,
				Failure: first,
				Err:     err,
				Debug:   DebugInfo{UsedPath: ctxPath, UsedBaseDir: ctxBase, TestCWD: testCWD},
			},
		}
	}

	verdict := p.analyzer.Analyze(ctx, tests.OutputTail, win.Render())
	return Result{
		OK:    true,
		Stage: StageDone,
		Outcome: Analyzed{
			Tests:    tests,
			Failure:  first,
			Context:  win,
			Analysis: verdict,
		},
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
