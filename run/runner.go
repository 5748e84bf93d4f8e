package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonwraymond/tooldebug/window"
)

// Bounds applied to a Request.
const (
	DefaultMaxOutputLines = 250
	MinOutputLines        = 1
	MaxOutputLines        = 2000

	DefaultTimeoutSeconds = 30
	MinTimeoutSeconds     = 5
	MaxTimeoutSeconds     = 300
)

// waitDelay bounds how long Run waits for output pipes after the process
// has been killed.
const waitDelay = 2 * time.Second

// Errors returned by NewRunner.
var (
	ErrRootRequired = errors.New("run: Root is required")
)

// Request describes one test run.
type Request struct {
	// Target is a file or directory. Empty means the configured default.
	Target string

	// MaxOutputLines caps OutputTail. Clamped to [1, 2000]; zero is
	// clamped like any other value, so callers apply their own default.
	MaxOutputLines int

	// TimeoutSeconds bounds the run. Clamped to [5, 300].
	TimeoutSeconds int
}

// Result is the outcome of a test run.
type Result struct {
	OK              bool     `json:"ok"`
	Error           string   `json:"error,omitempty"`
	Target          string   `json:"target,omitempty"`
	ExitCode        int      `json:"exit_code"`
	Cmd             []string `json:"cmd,omitempty"`
	OutputTail      string   `json:"output_tail"`
	OutputLineCount int      `json:"output_line_count"`
	Python          string   `json:"python,omitempty"`
	CWD             string   `json:"cwd,omitempty"`
	TimedOut        bool     `json:"timed_out,omitempty"`
}

// Runner launches pytest subprocesses. A Runner is safe for concurrent use.
type Runner struct {
	cfg Config
}

// NewRunner returns a Runner configured by opts.
func NewRunner(opts ...ConfigOption) (*Runner, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Root == nil {
		return nil, ErrRootRequired
	}
	cfg.applyDefaults()
	return &Runner{cfg: cfg}, nil
}

// Run executes pytest for req. It never returns a Go error; failures are
// reported in the Result.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	tgt := strings.TrimSpace(req.Target)
	if tgt == "" {
		tgt = r.cfg.DefaultTarget
	}

	tgtPath, err := r.cfg.Root.Resolve(tgt)
	if err != nil {
		return Result{OK: false, Error: err.Error(), Target: tgt}
	}
	info, err := os.Stat(tgtPath)
	if err != nil {
		return Result{OK: false, Error: fmt.Sprintf("target not found: %s", tgt), Target: tgt}
	}

	maxLines := clamp(req.MaxOutputLines, MinOutputLines, MaxOutputLines)
	timeoutSecs := clamp(req.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)

	args := []string{"-m", "pytest", "-q", "--maxfail=1", tgtPath}
	cmdLine := append([]string{r.cfg.Python}, args...)
	cwd := r.workingDir(tgtPath, info)

	res := Result{
		Target: tgt,
		Cmd:    cmdLine,
		Python: r.cfg.Python,
		CWD:    cwd,
	}

	r.cfg.Logger.Info("running pytest", "cmd", strings.Join(cmdLine, " "), "cwd", cwd)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	cmd := r.cfg.Command(runCtx, r.cfg.Python, args...)
	cmd.Dir = cwd
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env, "PYTEST_DISABLE_PLUGIN_AUTOLOAD=1")
	cmd.Stdin = nil
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	lines := window.SplitLines(combine(stdout.String(), stderr.String()))
	res.OutputTail = strings.Join(tail(lines, maxLines), "\n")
	res.OutputLineCount = len(lines)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.OK = false
		res.TimedOut = true
		res.ExitCode = -1
		res.Error = fmt.Sprintf("pytest timed out (%ds)", timeoutSecs)
		r.cfg.Logger.Warn("pytest timed out", "timeout_seconds", timeoutSecs, "target", tgt)
		return res
	}
	if err := runCtx.Err(); err != nil {
		res.OK = false
		res.ExitCode = -1
		res.Error = fmt.Sprintf("failed to run pytest: %v", err)
		return res
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			res.OK = false
			res.ExitCode = -1
			res.Error = fmt.Sprintf("failed to run pytest: %v", runErr)
			r.cfg.Logger.Error("failed to run pytest", "error", runErr)
			return res
		}
		res.ExitCode = exitErr.ExitCode()
	}

	res.OK = true
	r.cfg.Logger.Info("pytest finished", "exit_code", res.ExitCode, "lines", res.OutputLineCount, "elapsed", elapsed)
	return res
}

// workingDir picks the run directory: the root for targets inside it,
// otherwise the target directory or the file's parent.
func (r *Runner) workingDir(tgtPath string, info os.FileInfo) string {
	if r.cfg.Root.Contains(tgtPath) {
		return r.cfg.Root.Dir()
	}
	if info.IsDir() {
		return tgtPath
	}
	return filepath.Dir(tgtPath)
}

// combine appends stderr to stdout on a new line when stderr is non-empty.
func combine(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	return stdout + "\n" + stderr
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
