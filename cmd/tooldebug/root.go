package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/tooldebug/config"
	"github.com/jonwraymond/tooldebug/exec"
	"github.com/jonwraymond/tooldebug/logging"
	"github.com/jonwraymond/tooldebug/pipeline"
	"github.com/jonwraymond/tooldebug/tools"
)

// errNotOK marks a command whose tool result carried ok=false. The result
// has already been printed.
var errNotOK = errors.New("result not ok")

type rootFlags struct {
	configFile string
	envFile    string
	rootDir    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		a     *app
	)

	rootCmd := &cobra.Command{
		Use:   "tooldebug",
		Short: "Automated pytest debugging companion",
		Long: `tooldebug runs a project's pytest suite, locates the first failure,
extracts the surrounding source and asks a language model to explain it.

Run "tooldebug serve" to expose the tools to an MCP client over stdio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: flags.configFile, EnvFile: flags.envFile})
			if err != nil {
				return err
			}
			if flags.rootDir != "" {
				cfg.RootDir = flags.rootDir
			}

			zl, err := logging.New(logging.Options{Level: cfg.Log.Level, Verbose: flags.verbose})
			if err != nil {
				return err
			}
			a, err = newApp(cfg, zl)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				_ = a.zap.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (default ./tooldebug.yaml if present)")
	pf.StringVar(&flags.envFile, "env-file", "", "dotenv file (default ./.env)")
	pf.StringVar(&flags.rootDir, "root", "", "project root (default working directory)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	appFn := func() *app { return a }
	rootCmd.AddCommand(
		newServeCmd(appFn),
		newDebugCmd(appFn),
		newRunCmd(appFn),
		newExtractCmd(appFn),
		newContextCmd(appFn),
		newResolveCmd(appFn),
		newToolsCmd(appFn),
	)
	return rootCmd
}

func newDebugCmd(a func() *app) *cobra.Command {
	var maxLines, timeout, limit, radius int
	cmd := &cobra.Command{
		Use:   "debug [target]",
		Short: "Run the full debug pipeline on a target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd, a(), "debug_project", map[string]any{
				"target":           firstArg(args),
				"max_output_lines": maxLines,
				"timeout_seconds":  timeout,
				"failure_limit":    limit,
				"radius":           radius,
			})
		},
	}
	cmd.Flags().IntVar(&maxLines, "max-output-lines", pipeline.DefaultMaxOutputLines, "output tail length")
	cmd.Flags().IntVar(&timeout, "timeout", pipeline.DefaultTimeoutSeconds, "pytest timeout in seconds")
	cmd.Flags().IntVar(&limit, "failure-limit", pipeline.DefaultFailureLimit, "failures to extract")
	cmd.Flags().IntVar(&radius, "radius", pipeline.DefaultRadius, "context lines either side of the failure")
	return cmd
}

func newRunCmd(a func() *app) *cobra.Command {
	var maxLines, timeout int
	cmd := &cobra.Command{
		Use:   "run [target]",
		Short: "Run pytest on a target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd, a(), "run_pytest", map[string]any{
				"target":           firstArg(args),
				"max_output_lines": maxLines,
				"timeout_seconds":  timeout,
			})
		},
	}
	cmd.Flags().IntVar(&maxLines, "max-output-lines", tools.DefaultMaxOutputLines, "output tail length")
	cmd.Flags().IntVar(&timeout, "timeout", tools.DefaultTimeoutSeconds, "pytest timeout in seconds")
	return cmd
}

func newExtractCmd(a func() *app) *cobra.Command {
	var (
		limit   int
		baseDir string
	)
	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract file.py:line: failure locations from pytest output",
		Long:  "Reads pytest output from a file, or from stdin when the argument is \"-\" or omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), firstArg(args))
			if err != nil {
				return err
			}
			return callTool(cmd, a(), "extract_failures", map[string]any{
				"pytest_output": text,
				"limit":         limit,
				"base_dir":      baseDir,
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", tools.DefaultFailureLimit, "maximum records")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "directory pytest ran in")
	return cmd
}

func newContextCmd(a func() *app) *cobra.Command {
	var (
		radius  int
		baseDir string
	)
	cmd := &cobra.Command{
		Use:   "context <path> <line>",
		Short: "Print numbered source lines around a line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd, a(), "open_context", map[string]any{
				"path":     args[0],
				"line":     args[1],
				"radius":   radius,
				"base_dir": baseDir,
			})
		},
	}
	cmd.Flags().IntVar(&radius, "radius", tools.DefaultRadius, "lines either side")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "resolve a relative path against this directory first")
	return cmd
}

func newResolveCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Resolve a path through the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd, a(), "resolve_path", map[string]any{"path": args[0]})
		},
	}
}

func newToolsCmd(a func() *app) *cobra.Command {
	var (
		describe string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "tools [query]",
		Short: "List, search or describe the available tools",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := a().exec
			ctx := cmd.Context()

			if describe != "" {
				id := describe
				if !strings.Contains(id, ":") {
					id = tools.Namespace + ":" + id
				}
				doc, err := e.GetToolDoc(ctx, id, tooldoc.DetailFull)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			}

			if q := firstArg(args); q != "" {
				found, err := e.SearchTools(ctx, q, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), found)
			}

			type entry struct {
				ID          string   `json:"id"`
				Description string   `json:"description"`
				Tags        []string `json:"tags,omitempty"`
			}
			var list []entry
			for _, t := range e.Tools() {
				list = append(list, entry{ID: exec.ToolID(t), Description: t.Description, Tags: t.Tags})
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&describe, "describe", "", "print full documentation for a tool")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum search results")
	return cmd
}

// callTool dispatches through the tool facade and prints the value.
func callTool(cmd *cobra.Command, a *app, name string, args map[string]any) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := a.exec.RunTool(ctx, tools.Namespace+":"+name, args)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), res.Value); err != nil {
		return err
	}
	if !resultOK(res.Value) {
		return errNotOK
	}
	return nil
}

// resultOK reads the "ok" field of a tool result.
func resultOK(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var status struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return false
	}
	return status.OK
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
