// Package exec provides a unified facade for tool execution.
//
// The exec package combines registration, discovery, dispatch, and
// documentation lookup into a single API. Tools are indexed in a
// tooldiscovery index with a local backend whose name points at a handler
// held by the [Exec] instance.
//
// # Overview
//
//   - Tool registration via tooldiscovery's index and doc store
//   - Local handler dispatch with a per-call timeout
//   - Tool search and discovery
//   - Documentation retrieval
//
// # Basic Usage
//
//	idx := index.NewInMemoryIndex(index.IndexOptions{
//	    Searcher: search.NewBM25Searcher(search.BM25Config{}),
//	})
//	docs := tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})
//
//	executor, err := exec.New(exec.Options{Index: idx, Docs: docs})
//
//	err = executor.Register(exec.ToolDef{
//	    Tool: model.Tool{
//	        Tool:      mcp.Tool{Name: "ping", InputSchema: map[string]any{"type": "object"}},
//	        Namespace: "debug",
//	    },
//	    Doc:     tooldoc.DocEntry{Summary: "Liveness check"},
//	    Handler: func(ctx context.Context, args map[string]any) (any, error) {
//	        return map[string]any{"ok": true}, nil
//	    },
//	})
//
//	result, err := executor.RunTool(ctx, "debug:ping", nil)
//
// # Search and Execute
//
//	results, _ := executor.SearchTools(ctx, "pytest failures", 5)
//	if len(results) > 0 {
//	    result, _ := executor.RunTool(ctx, results[0].ID, args)
//	}
//
// # Integration
//
//   - [github.com/jonwraymond/tooldiscovery/index] for tool registration and lookup
//   - [github.com/jonwraymond/tooldiscovery/tooldoc] for tool documentation
//   - [github.com/jonwraymond/toolfoundation/model] for tool and backend types
package exec
