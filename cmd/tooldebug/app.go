package main

import (
	"fmt"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jonwraymond/tooldebug/analysis"
	"github.com/jonwraymond/tooldebug/config"
	"github.com/jonwraymond/tooldebug/exec"
	"github.com/jonwraymond/tooldebug/logging"
	"github.com/jonwraymond/tooldebug/pipeline"
	"github.com/jonwraymond/tooldebug/run"
	"github.com/jonwraymond/tooldebug/sandbox"
	"github.com/jonwraymond/tooldebug/tools"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	zap      *zap.Logger
	log      *logging.Logger
	registry *prometheus.Registry
	exec     *exec.Exec
}

func newApp(cfg config.Config, zl *zap.Logger) (*app, error) {
	log := logging.Adapt(zl)

	root, err := sandbox.NewRoot(cfg.RootDir, sandbox.WithAllowedRootsEnv(cfg.AllowedRootsEnv))
	if err != nil {
		return nil, fmt.Errorf("root %s: %w", cfg.RootDir, err)
	}

	runner, err := run.NewRunner(
		run.WithRoot(root),
		run.WithDefaultTarget(cfg.DefaultTarget),
		run.WithPython(cfg.Python),
		run.WithLogger(log.Named("run")),
	)
	if err != nil {
		return nil, err
	}

	analyzer, err := analysis.New(analysis.Config{
		Provider:      cfg.Analysis.Provider,
		GeminiModel:   cfg.Analysis.GeminiModel,
		OpenAIModel:   cfg.Analysis.OpenAIModel,
		OpenAIBaseURL: cfg.Analysis.OpenAIBaseURL,
		Logger:        log.Named("analysis"),
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p, err := pipeline.New(pipeline.Config{
		Root:     root,
		Runner:   runner,
		Analyzer: analyzer,
		Metrics:  pipeline.NewMetrics(registry),
		Logger:   log.Named("pipeline"),
	})
	if err != nil {
		return nil, err
	}

	idx := index.NewInMemoryIndex(index.IndexOptions{
		Searcher: search.NewBM25Searcher(search.BM25Config{}),
	})
	e, err := exec.New(exec.Options{
		Index:  idx,
		Docs:   tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx}),
		Logger: log.Named("exec"),
	})
	if err != nil {
		return nil, err
	}

	set, err := tools.New(tools.Deps{Root: root, Runner: runner, Analyzer: analyzer, Debugger: p})
	if err != nil {
		return nil, err
	}
	if err := set.Register(e); err != nil {
		return nil, err
	}

	log.Debug("configured", "root", root.Dir(), "python", cfg.Python, "provider", cfg.Analysis.Provider)
	return &app{
		cfg:      cfg,
		zap:      zl,
		log:      log,
		registry: registry,
		exec:     e,
	}, nil
}
