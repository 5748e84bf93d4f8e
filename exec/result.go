package exec

import (
	"context"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// Handler is the function signature for local tool handlers.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ToolDef bundles a tool with its documentation and handler.
type ToolDef struct {
	// Tool is the MCP tool definition plus namespace and tags.
	Tool model.Tool

	// Doc is registered with the documentation store.
	Doc tooldoc.DocEntry

	// Handler serves calls to the tool.
	Handler Handler
}

// ID returns the canonical "namespace:name" identifier.
func (d ToolDef) ID() string {
	return ToolID(d.Tool)
}

// ToolID returns the canonical identifier for t.
func ToolID(t model.Tool) string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + ":" + t.Name
}

// Result represents the outcome of a single tool execution.
type Result struct {
	// Value is the return value from the tool.
	Value any

	// ToolID is the canonical ID of the executed tool.
	ToolID string

	// Duration is how long the tool took to execute.
	Duration time.Duration

	// Error is non-nil if the tool execution failed.
	// This is set when the tool itself returns an error,
	// not for resolution errors (which are returned from
	// RunTool directly).
	Error error
}

// OK returns true if the result has no error.
func (r Result) OK() bool {
	return r.Error == nil
}

// ToolSummary is an alias to index.Summary for search results.
type ToolSummary = index.Summary
