// loom runs a taskset manifest across one or more workers (spec
// §4.9): a bounded DAG scheduler that sets up workers, fans tasks out
// against them, and tears them down again.
//
// Grounded on original_source/src/{main,cli}.rs for the flag set and
// top-level control flow, and on the teacher's cmd/cwl-runner/main.go
// for cobra's flag-registration and subcommand-wiring idiom.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/config"
	"github.com/loomrun/loom/internal/errtax"
)

var (
	manifestPath string
	numThreads   int
	logLevelFlag string
	workerExists string
	noClean      bool
	doClean      bool
	extraVars    []string
	skipTasks    []string
)

func main() {
	root := &cobra.Command{
		Use:           "loom",
		Short:         "Run a loom taskset manifest",
		Args:          cobra.NoArgs,
		RunE:          runDefault,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (default: LM.local.toml, falling back to LM.toml)")
	root.PersistentFlags().IntVar(&numThreads, "num-threads", 0, "Global worker-pool concurrency cap (default: number of CPUs)")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: off|error|warn|info|debug|trace")
	root.PersistentFlags().StringVar(&workerExists, "worker-exists", "", "Worker exists-action: fail|ignore|replace")
	root.PersistentFlags().BoolVar(&doClean, "clean", false, "Always tear workers down after the run")
	root.PersistentFlags().BoolVar(&noClean, "no-clean", false, "Never tear workers down after the run")
	root.MarkFlagsMutuallyExclusive("clean", "no-clean")
	root.PersistentFlags().StringArrayVarP(&extraVars, "extra-vars", "e", nil, "Extra var as name=value (repeatable)")
	root.PersistentFlags().StringArrayVar(&skipTasks, "skip-tasks", nil, "Taskset task name to skip (repeatable)")

	root.AddCommand(cleanCmd())
	root.AddCommand(initCmd())

	if err := root.Execute(); err != nil {
		reportErr(err)
		os.Exit(1)
	}
}

// reportErr prints err the way spec §7 requires: a *errtax.UserErr
// prints its own message (if any) and exits with its own code; any
// other error is formatted through the full breadcrumb/context chain
// and exits 1. Grounded on original_source/src/main.rs's top-level
// error handler.
func reportErr(err error) {
	lines := 20
	if cfg, cfgErr := config.Load(); cfgErr == nil {
		lines = cfg.Error.ContextLines
	}

	var ue *errtax.UserErr
	if errors.As(err, &ue) {
		if ue.Msg != "" {
			fmt.Fprintln(os.Stderr, ue.Msg)
		}
		if ue.Trace {
			fmt.Fprint(os.Stderr, errtax.Format(err, lines))
		}
		os.Exit(ue.ExitCode())
	}

	fmt.Fprint(os.Stderr, errtax.Format(err, lines))
}
