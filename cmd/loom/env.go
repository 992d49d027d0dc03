package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/loomrun/loom/internal/backend"
	"github.com/loomrun/loom/internal/config"
	"github.com/loomrun/loom/internal/logging"
	"github.com/loomrun/loom/internal/manifest"
	"github.com/loomrun/loom/internal/semaphore"
	"github.com/loomrun/loom/internal/tmpl"
	"github.com/loomrun/loom/internal/tmproot"
)

// app bundles the process-wide collaborators every subcommand needs:
// logger, config, the shared template engine/renderer, the manifest
// loader, the fs-vars root, and the --num-threads worker pool. Built
// once per invocation in newApp, torn down via Close.
type app struct {
	Logger   *slog.Logger
	Config   config.Config
	Root     *tmproot.Root
	Renderer rendererAdapter
	Loader   *manifest.Loader
	Sem      *semaphore.Semaphore
	FsWriter fsVarWriter
}

func newApp() (*app, error) {
	if err := config.Bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	levelSrc := cfg.LogLevel
	if logLevelFlag != "" {
		levelSrc = logLevelFlag
	}
	logger := logging.NewLogger(logging.ParseLevel(levelSrc), "text")

	root, err := tmproot.New()
	if err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}

	eng := tmpl.New(root.Tmpfile, fsReaderFor(root))
	renderer := rendererAdapter{eng: eng}

	shellHost := backend.New("loom-loader", backend.NewHostEngine(), logger)
	loader := manifest.NewLoader(renderer, shellHost, logger)

	threads := numThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	return &app{
		Logger:   logger,
		Config:   cfg,
		Root:     root,
		Renderer: renderer,
		Loader:   loader,
		Sem:      semaphore.New(threads),
		FsWriter: fsVarWriter{root: root},
	}, nil
}

func (a *app) Close() {
	if a.Root != nil {
		if err := a.Root.Close(); err != nil {
			a.Logger.Warn("remove temp root", "error", err)
		}
	}
}
