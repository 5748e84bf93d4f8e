package run

import (
	"context"
	"os/exec"

	"github.com/jonwraymond/tooldebug/sandbox"
)

// Default configuration values.
const (
	DefaultTarget = "demo_project"
	DefaultPython = "python3"
)

// CommandFunc builds the subprocess for a test run. It has the shape of
// exec.CommandContext so tests can substitute a helper process.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Logger is the interface for logging.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config controls how a Runner locates and launches pytest.
type Config struct {
	// Root confines every target. Required.
	Root *sandbox.Root

	// DefaultTarget is used when a request names no target.
	// Defaults to DefaultTarget.
	DefaultTarget string

	// Python is the interpreter that runs "-m pytest".
	// Defaults to DefaultPython.
	Python string

	// Command builds the subprocess. Defaults to exec.CommandContext.
	Command CommandFunc

	// Logger receives run lifecycle events. Optional.
	Logger Logger
}

// applyDefaults sets default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.DefaultTarget == "" {
		c.DefaultTarget = DefaultTarget
	}
	if c.Python == "" {
		c.Python = DefaultPython
	}
	if c.Command == nil {
		c.Command = exec.CommandContext
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// ConfigOption is a functional option for configuring a Runner.
type ConfigOption func(*Config)

// WithRoot sets the sandbox root.
func WithRoot(root *sandbox.Root) ConfigOption {
	return func(c *Config) {
		c.Root = root
	}
}

// WithDefaultTarget sets the target used when a request names none.
func WithDefaultTarget(target string) ConfigOption {
	return func(c *Config) {
		c.DefaultTarget = target
	}
}

// WithPython sets the interpreter path.
func WithPython(python string) ConfigOption {
	return func(c *Config) {
		c.Python = python
	}
}

// WithCommandFunc replaces the subprocess constructor.
func WithCommandFunc(fn CommandFunc) ConfigOption {
	return func(c *Config) {
		c.Command = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = l
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
