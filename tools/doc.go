// Package tools defines the debug tool set served over MCP and the CLI.
//
// Each tool is an [exec.ToolDef]: an MCP tool definition in the "debug"
// namespace, a documentation entry, and a handler. Handlers never return Go
// errors for component failures; they report them as data in a JSON object
// carrying "ok" and "error", so an agent can read the reason and retry.
//
// # Tools
//
//   - ping: liveness check
//   - resolve_path: sandbox a path against the root and allow-list
//   - run_pytest: run pytest on a target and return the output tail
//   - extract_failures: parse file.py:line: locations from runner output
//   - open_context: numbered source window around a line
//   - analyze_error: ask the configured model to explain a failure
//   - debug_project: the full run, extract, open and analyze pipeline
package tools
