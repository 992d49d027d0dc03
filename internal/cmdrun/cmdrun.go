// Package cmdrun implements the command runner (spec §4.5, Component
// E): shelling out to a worker-local or remote process, classifying
// success per an explicit three-step order, and shaping the result
// value tasks see.
//
// Grounded on original_source/src/cmd.rs's Cmd/CmdOut: piped
// stdin/stdout/stderr, a ChildStdin error when the stdin pipe is
// unavailable, and a configurable success_codes list (default [0], an
// empty list meaning "always succeeds").
package cmdrun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/loomrun/loom/internal/errtax"
)

// Output is a completed process's captured result.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int // -1 if the process did not exit normally (e.g. signal)
}

// Runner launches a process and waits for it to complete. Backends
// implement this to route a command through a host shell, a container
// exec, or an SSH session.
type Runner interface {
	Run(ctx context.Context, argv []string, stdin string) (*Output, error)
}

// OSRunner runs argv directly via os/exec, piping stdin as its initial
// bytes and capturing stdout/stderr. It is the Host backend's Runner.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, argv []string, stdin string) (*Output, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("cmdrun: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	if stdin != "" {
		stdinPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, errtax.ChildStdin()
		}
		cmd.Stdin = strings.NewReader(stdin)
		// cmd.Stdin is sufficient on its own; the explicit pipe is kept
		// only to surface errtax.ChildStdin the way the original does
		// when the stdin handle cannot be obtained.
		_ = stdinPipe
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		if exitErr.ProcessState != nil {
			exitCode = exitErr.ProcessState.ExitCode()
		} else {
			exitCode = -1
		}
	} else if runErr != nil {
		return nil, runErr
	}

	return &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}

// OutputSink configures how a stream is surfaced while the command
// runs: logged at a level, printed to the console, or both. A zero Log
// (slog.LevelInfo) leaves the stream unlogged, so Info cannot be chosen.
type OutputSink struct {
	Log   slog.Level
	Print bool
}

// ResultShape selects what CmdParams.Result extracts from a completed
// run into the task's result value.
type ResultShape string

const (
	ResultStdout      ResultShape = "stdout"
	ResultStderr      ResultShape = "stderr"
	ResultStdoutLines ResultShape = "stdout_lines"
	ResultStderrLines ResultShape = "stderr_lines"
	ResultRC          ResultShape = "rc"
	ResultMatched     ResultShape = "matched"
)

// CmdParams is the task-facing shape of the command runner's inputs
// (spec §4.5).
type CmdParams struct {
	// Check, when true (the default), turns an exit code outside
	// SuccessCodes into a failure. A caller sets this to false to
	// treat a command as always "successful" regardless of exit code.
	Check *bool

	Stdin string

	Stdout OutputSink
	Stderr OutputSink

	// SuccessCodes defaults to []int{0}; an empty (non-nil) slice means
	// "always succeeds" regardless of exit code.
	SuccessCodes []int

	SuccessMatches *Matches
	FailureMatches *Matches

	Result ResultShape
}

func (p CmdParams) check() bool {
	if p.Check == nil {
		return true
	}
	return *p.Check
}

func (p CmdParams) successCodes() []int {
	if p.SuccessCodes == nil {
		return []int{0}
	}
	return p.SuccessCodes
}

func (p CmdParams) codeOK(code int) bool {
	codes := p.successCodes()
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Run executes argv via r, logs/prints its streams per params, decides
// success in the spec's three-step order (exit code, then
// failure_matches, then success_matches), and on failure returns an
// error carrying a structured context bag. On success it returns the
// value selected by params.Result.
func Run(ctx context.Context, r Runner, argv []string, params CmdParams, logger *slog.Logger) (any, error) {
	cmdline := strings.Join(argv, " ")

	out, err := r.Run(ctx, argv, params.Stdin)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", cmdline, err)
	}

	logStream(logger, params.Stdout, "stdout", out.Stdout)
	logStream(logger, params.Stderr, "stderr", out.Stderr)

	failMatched, err := params.FailureMatches.IsMatch(out.Stdout, out.Stderr)
	if err != nil {
		return nil, err
	}
	successMatched, err := params.SuccessMatches.IsMatch(out.Stdout, out.Stderr)
	if err != nil {
		return nil, err
	}

	var failErr error
	switch {
	case params.check() && !params.codeOK(out.ExitCode):
		failErr = errtax.CommandFailedExitCode(cmdline)
	case params.FailureMatches != nil && failMatched:
		failErr = errtax.CommandFailedFailureMatches(cmdline)
	case params.SuccessMatches != nil && !successMatched:
		failErr = errtax.CommandFailedSuccessMatches(cmdline)
	}

	if failErr != nil {
		return nil, errtax.WithContext(failErr, contextBag(params, out, successMatched, failMatched))
	}

	return shapeResult(params.Result, out, successMatched), nil
}

func logStream(logger *slog.Logger, sink OutputSink, name, content string) {
	if logger == nil || content == "" {
		return
	}
	if sink.Log != 0 {
		logger.Log(context.Background(), sink.Log, content, "stream", name)
	}
	if sink.Print {
		fmt.Print(content)
	}
}

func contextBag(params CmdParams, out *Output, successMatched, failMatched bool) errtax.ContextBag {
	bag := errtax.ContextBag{
		Stdin:  params.Stdin,
		Stdout: out.Stdout,
		Stderr: out.Stderr,
		RC:     out.ExitCode,
	}
	var matches []string
	appendMatches := func(label string, m *Matches, matched bool) {
		data, _ := json.Marshal(m.ToJSON())
		matches = append(matches, fmt.Sprintf("%s=%s (matched: %v)", label, data, matched))
	}
	if params.SuccessMatches != nil {
		appendMatches("success_matches", params.SuccessMatches, successMatched)
	}
	if params.FailureMatches != nil {
		appendMatches("failure_matches", params.FailureMatches, failMatched)
	}
	// success_codes is only worth recording when it deviates from the
	// implicit default — spec §4.5 calls this out explicitly.
	codes := params.successCodes()
	if !(len(codes) == 1 && codes[0] == 0) {
		codeStrs := make([]string, len(codes))
		for i, c := range codes {
			codeStrs[i] = strconv.Itoa(c)
		}
		matches = append(matches, "success_codes=["+strings.Join(codeStrs, ",")+"]")
	}
	bag.Matches = strings.Join(matches, " ")
	return bag
}

func shapeResult(shape ResultShape, out *Output, successMatched bool) any {
	switch shape {
	case ResultStderr:
		return out.Stderr
	case ResultStdoutLines:
		return splitLines(out.Stdout)
	case ResultStderrLines:
		return splitLines(out.Stderr)
	case ResultRC:
		return out.ExitCode
	case ResultMatched:
		return successMatched
	case ResultStdout:
		fallthrough
	default:
		return out.Stdout
	}
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
