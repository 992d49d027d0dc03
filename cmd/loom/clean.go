package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/runner"
)

// cleanCmd is `loom clean`: parse the manifest just enough to know its
// workers and tear every one of them down, without running the taskset.
// Grounded on original_source/src/cli.rs's Commands::Clean variant; it
// reuses the root command's persistent --manifest flag rather than
// redeclaring one, since cobra would otherwise reject the shorthand
// collision.
func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Tear down every worker a manifest declares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path := findManifest(manifestPath)
			m, err := a.Loader.Parse(path, map[string]any{})
			if err != nil {
				return err
			}
			flat, err := m.Vars.Render(map[string]any{}, a.Renderer, a.Root.FsVarsDir)
			if err != nil {
				return err
			}

			rn := runner.New(m, flat, runner.Deps{
				Renderer:  a.Renderer,
				Manifests: a.Loader,
				Logger:    a.Logger,
				FsWriter:  a.FsWriter,
				Sem:       a.Sem,
			})
			return rn.Clean(context.Background())
		},
	}
}
