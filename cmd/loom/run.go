package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/backend"
	"github.com/loomrun/loom/internal/runner"
)

// runDefault is the root command's default action (spec §4.9): parse the
// target manifest, build its Runner, run the taskset DAG, and tear
// workers down per the clean policy. Grounded on
// original_source/src/main.rs's inner_main.
func runDefault(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		a.Logger.Info("received interrupt, cancelling")
		cancel()
	}()

	extraCtx, err := extraVarsCtx(extraVars, a.Renderer)
	if err != nil {
		return err
	}

	path := findManifest(manifestPath)
	m, err := a.Loader.Parse(path, extraCtx)
	if err != nil {
		return err
	}

	flat, err := m.Vars.Render(extraCtx, a.Renderer, a.Root.FsVarsDir)
	if err != nil {
		return err
	}
	finalCtx := mergeOver(flat, extraCtx)

	rn := runner.New(m, finalCtx, runner.Deps{
		Renderer:  a.Renderer,
		Manifests: a.Loader,
		Logger:    a.Logger,
		FsWriter:  a.FsWriter,
		Sem:       a.Sem,
	})
	rn.SkipTasks = skipTasks

	action := backend.ExistsAction(a.Config.Worker.ExistsAction)
	if workerExists != "" {
		action = backend.ExistsAction(workerExists)
	}
	rn.WorkerExists = &action

	runErr := rn.Run(ctx)

	shouldClean := a.Config.Clean.Default
	if doClean {
		shouldClean = true
	}
	if noClean {
		shouldClean = false
	}
	if shouldClean {
		if cleanErr := rn.Clean(ctx); cleanErr != nil && runErr == nil {
			return cleanErr
		}
	}

	return runErr
}
