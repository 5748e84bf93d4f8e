package pipeline

import (
	"encoding/json"
	"time"

	"github.com/jonwraymond/tooldebug/analysis"
	"github.com/jonwraymond/tooldebug/failures"
	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/window"
)

// Stage names the step at which a debug run stopped.
type Stage string

// Stages in execution order. StageDone covers both the all-passed and the
// analyzed outcomes.
const (
	StageRunTests        Stage = "run_tests"
	StageExtractFailures Stage = "extract_failures"
	StageOpenContext     Stage = "open_context"
	StageDone            Stage = "done"
)

// Result messages.
const (
	MsgAllPassed          = "All tests passed"
	MsgNoFailureLocation  = "Tests failed but could not parse a file:line location from output_tail"
	MsgContextUnavailable = "Got failure location but could not open file context"
)

// Outcome is one of RunFailed, AllPassed, NoFailures, ContextUnavailable or
// Analyzed.
type Outcome interface {
	isOutcome()
}

// RunFailed means the runner could not produce a test run.
type RunFailed struct {
	Tests run.Result
}

// AllPassed means the run exited with code 0.
type AllPassed struct {
	Tests run.Result
}

// NoFailures means the run failed but no location was found. Err is set
// when extraction itself failed.
type NoFailures struct {
	Tests   run.Result
	Extract failures.Result
	Err     error
}

// DebugInfo records the inputs used for a failed context read.
type DebugInfo struct {
	UsedPath    string `json:"used_path"`
	UsedBaseDir string `json:"used_base_dir"`
	TestCWD     string `json:"pytest_cwd"`
}

// ContextUnavailable means the first failure could not be read.
type ContextUnavailable struct {
	Tests   run.Result
	Failure failures.Record
	Err     error
	Debug   DebugInfo
}

// Analyzed means the analyzer was consulted. Analysis may itself report
// OK=false.
type Analyzed struct {
	Tests    run.Result
	Failure  failures.Record
	Context  window.Window
	Analysis analysis.Result
}

func (RunFailed) isOutcome()          {}
func (AllPassed) isOutcome()          {}
func (NoFailures) isOutcome()         {}
func (ContextUnavailable) isOutcome() {}
func (Analyzed) isOutcome()           {}

// Result is the outcome of one Debug call.
type Result struct {
	RunID    string
	OK       bool
	Stage    Stage
	Message  string
	Outcome  Outcome
	Duration time.Duration
}

type errorJSON struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// MarshalJSON flattens the outcome into the result object.
func (r Result) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"ok":     r.OK,
		"stage":  r.Stage,
		"run_id": r.RunID,
	}
	if r.Message != "" {
		m["msg"] = r.Message
	}

	switch o := r.Outcome.(type) {
	case RunFailed:
		m["details"] = o.Tests
	case AllPassed:
		m["pytest"] = o.Tests
	case NoFailures:
		m["pytest"] = o.Tests
		if o.Err != nil {
			m["extract"] = errorJSON{Error: o.Err.Error()}
		} else {
			m["extract"] = struct {
				OK bool `json:"ok"`
				failures.Result
			}{true, o.Extract}
		}
	case ContextUnavailable:
		m["pytest"] = o.Tests
		m["failure"] = o.Failure
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		m["context"] = errorJSON{Error: msg}
		m["debug_info"] = o.Debug
	case Analyzed:
		m["pytest"] = o.Tests
		m["failure"] = o.Failure
		m["context"] = struct {
			OK bool `json:"ok"`
			window.Window
		}{true, o.Context}
		m["analysis"] = o.Analysis
	}
	return json.Marshal(m)
}
