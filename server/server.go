// Package server exposes an exec.Exec tool set as an MCP server.
//
// Every registered tool is published under its bare name with its JSON
// input schema. Calls are decoded, dispatched through the facade, and
// answered with the JSON-encoded result as text plus the same value as
// structured content. Only protocol frames are written to stdout.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/tooldebug/exec"
)

// Name is the implementation name reported to clients.
const Name = "debug-companion"

// DefaultVersion is reported when Options.Version is empty.
const DefaultVersion = "0.1.0"

// ErrExecRequired is returned by New without a tool facade.
var ErrExecRequired = errors.New("server: Exec is required")

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Server.
type Options struct {
	// Version is reported in the initialize handshake.
	Version string

	// Logger is optional.
	Logger Logger
}

// Server adapts an exec.Exec to the MCP protocol.
type Server struct {
	exec   *exec.Exec
	mcp    *mcp.Server
	logger Logger
}

// New builds an MCP server publishing every tool registered in e.
func New(e *exec.Exec, opts Options) (*Server, error) {
	if e == nil {
		return nil, ErrExecRequired
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	s := &Server{
		exec:   e,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: Name, Version: opts.Version}, nil),
		logger: opts.Logger,
	}
	for _, t := range e.Tools() {
		tool := t.Tool
		s.mcp.AddTool(&tool, s.handler(exec.ToolID(t)))
	}
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio", "name", Name)
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handler(toolID string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArgs(req.Params.Arguments)
		if err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
		}

		res, err := s.exec.RunTool(ctx, toolID, args)
		if err != nil {
			return errorResult(err), nil
		}

		text, err := json.Marshal(res.Value)
		if err != nil {
			return errorResult(fmt.Errorf("encode result: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
			StructuredContent: json.RawMessage(text),
		}, nil
	}
}

// decodeArgs reads a JSON object, keeping numbers as json.Number.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, err
	}
	return args, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
