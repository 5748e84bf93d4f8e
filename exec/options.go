package exec

import (
	"errors"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
)

// DefaultTimeout bounds a single tool call. It sits above the longest test
// run the debug tools allow.
const DefaultTimeout = 10 * time.Minute

// Errors returned by Options validation.
var (
	ErrIndexRequired = errors.New("exec: Index is required")
	ErrDocsRequired  = errors.New("exec: Docs store is required")
)

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

// Options configures an Exec instance.
type Options struct {
	// Index provides tool discovery and registration.
	// Required.
	Index index.Index

	// Docs provides tool documentation.
	// Required.
	Docs tooldoc.Store

	// DefaultTimeout bounds each tool call.
	// Default: 10m
	DefaultTimeout time.Duration

	// Logger receives dispatch events. Optional.
	Logger Logger
}

// validate checks that required fields are set.
func (o *Options) validate() error {
	if o.Index == nil {
		return ErrIndexRequired
	}
	if o.Docs == nil {
		return ErrDocsRequired
	}
	return nil
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.DefaultTimeout == 0 {
		o.DefaultTimeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
