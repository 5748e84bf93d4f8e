package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// Errors returned by registration and dispatch.
var (
	// ErrToolNotFound is returned when the index has no tool with the ID.
	ErrToolNotFound = errors.New("exec: tool not found")

	// ErrUnsupportedBackend is returned for tools not backed by a local handler.
	ErrUnsupportedBackend = errors.New("exec: only local backends are supported")

	// ErrHandlerNotFound is returned when a local backend names no handler.
	ErrHandlerNotFound = errors.New("exec: local handler not found")

	// ErrHandlerRequired is returned when registering a ToolDef without a handler.
	ErrHandlerRequired = errors.New("exec: Handler is required")

	// ErrDuplicateTool is returned when a tool ID is registered twice.
	ErrDuplicateTool = errors.New("exec: tool already registered")
)

// docRegistrar is implemented by writable doc stores such as
// tooldoc.InMemoryStore.
type docRegistrar interface {
	RegisterDoc(id string, entry tooldoc.DocEntry) error
}

// Exec is the unified facade for tool execution.
// It combines discovery, execution, and result handling into a single API.
type Exec struct {
	index index.Index
	docs  tooldoc.Store
	opts  Options

	mu       sync.RWMutex
	handlers map[string]Handler
	tools    []model.Tool
}

// New creates a new Exec instance with the given options.
func New(opts Options) (*Exec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	return &Exec{
		index:    opts.Index,
		docs:     opts.Docs,
		opts:     opts,
		handlers: make(map[string]Handler),
	}, nil
}

// Register adds a tool to the index, its documentation to the doc store
// and its handler to the local dispatch table.
func (e *Exec) Register(def ToolDef) error {
	if def.Handler == nil {
		return ErrHandlerRequired
	}
	id := def.ID()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.handlers[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, id)
	}
	if err := e.index.RegisterTool(def.Tool, model.NewLocalBackend(id)); err != nil {
		return fmt.Errorf("exec: register %s: %w", id, err)
	}
	if reg, ok := e.docs.(docRegistrar); ok {
		if err := reg.RegisterDoc(id, def.Doc); err != nil {
			return fmt.Errorf("exec: register doc %s: %w", id, err)
		}
	} else {
		e.opts.Logger.Warn("doc store is read-only, skipping doc", "tool", id)
	}
	e.handlers[id] = def.Handler
	e.tools = append(e.tools, def.Tool)
	return nil
}

// RunTool executes a single tool by ID and returns the result.
func (e *Exec) RunTool(ctx context.Context, toolID string, args map[string]any) (Result, error) {
	start := time.Now()
	fail := func(err error) (Result, error) {
		return Result{ToolID: toolID, Duration: time.Since(start), Error: err}, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	h, err := e.resolve(toolID)
	if err != nil {
		e.opts.Logger.Warn("tool resolution failed", "tool", toolID, "error", err)
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.DefaultTimeout)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	value, err := h(ctx, args)
	duration := time.Since(start)
	if err != nil {
		e.opts.Logger.Error("tool failed", "tool", toolID, "error", err, "duration", duration)
		return Result{ToolID: toolID, Duration: duration, Error: err}, err
	}

	e.opts.Logger.Info("tool finished", "tool", toolID, "duration", duration)
	return Result{
		Value:    value,
		ToolID:   toolID,
		Duration: duration,
	}, nil
}

// resolve maps a tool ID to its handler through the index backend.
func (e *Exec) resolve(toolID string) (Handler, error) {
	_, backend, err := e.index.GetTool(toolID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}
	if backend.Kind != model.BackendKindLocal || backend.Local == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, toolID)
	}

	e.mu.RLock()
	h, ok := e.handlers[backend.Local.Name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, backend.Local.Name)
	}
	return h, nil
}

// SearchTools finds tools matching a query.
func (e *Exec) SearchTools(ctx context.Context, query string, limit int) ([]ToolSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.index.Search(query, limit)
}

// GetToolDoc retrieves tool documentation at the specified detail level.
func (e *Exec) GetToolDoc(ctx context.Context, toolID string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	if err := ctx.Err(); err != nil {
		return tooldoc.ToolDoc{}, err
	}
	return e.docs.DescribeTool(toolID, level)
}

// Tools returns the registered tools in registration order.
func (e *Exec) Tools() []model.Tool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Tool, len(e.tools))
	copy(out, e.tools)
	return out
}

// Index returns the underlying tool index.
func (e *Exec) Index() index.Index {
	return e.index
}

// DocStore returns the underlying documentation store.
func (e *Exec) DocStore() tooldoc.Store {
	return e.docs
}
