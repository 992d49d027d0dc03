package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/errtax"
)

// initCmd is `loom init <profile> [manifest_path]`: write out (or render,
// per the profile's own `render` flag) one of config.toml's named init
// profiles to manifest_path, or to stdout when manifest_path is "-".
// Grounded on original_source/src/init.rs's manifest function.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <profile> [manifest_path]",
		Short: "Write a new manifest from a configured init profile",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileName := args[0]
			path := "LM.toml"
			if len(args) == 2 {
				path = args[1]
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			profile, ok := a.Config.Init.Profiles[profileName]
			if !ok {
				return errtax.BadInitProfile(profileName)
			}

			if path != "-" {
				if _, err := os.Stat(path); err == nil {
					return errtax.InitManifestExists(path)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("stat %s: %w", path, err)
				}
			}

			content := profile.Manifest
			if profile.Render {
				extraCtx, err := extraVarsCtx(extraVars, a.Renderer)
				if err != nil {
					return err
				}
				ctx := mergeOver(profile.Vars, extraCtx)
				content, err = a.Renderer.Render(profile.Manifest, ctx)
				if err != nil {
					return fmt.Errorf("render init profile %s: %w", profileName, err)
				}
			}

			if path == "-" {
				fmt.Fprint(os.Stdout, content)
				return nil
			}
			return os.WriteFile(path, []byte(content), 0o644)
		},
	}
}
