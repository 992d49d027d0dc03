package cmdrun

import (
	"context"
	"testing"
)

func TestMatchesAnyRe(t *testing.T) {
	m := &Matches{Kind: MatchAnyRe, Re: "ok"}
	got, err := m.IsMatch("all ok", "")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if !got {
		t.Errorf("IsMatch() = false, want true")
	}
}

func TestMatchesOutReDoesNotCheckErr(t *testing.T) {
	m := &Matches{Kind: MatchOutRe, Re: "ok"}
	got, err := m.IsMatch("nope", "ok")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if got {
		t.Errorf("IsMatch() = true, want false")
	}
}

func TestMatchesErrRe(t *testing.T) {
	m := &Matches{Kind: MatchErrRe, Re: "fail"}
	got, err := m.IsMatch("", "it did fail")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if !got {
		t.Errorf("IsMatch() = false, want true")
	}
}

func TestMatchesAndAllMustMatch(t *testing.T) {
	m := &Matches{Kind: MatchAnd, Children: []*Matches{
		{Kind: MatchOutRe, Re: "a"},
		{Kind: MatchOutRe, Re: "b"},
	}}
	got, err := m.IsMatch("a and b", "")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if !got {
		t.Errorf("IsMatch() = false, want true")
	}

	got, err = m.IsMatch("only a", "")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if got {
		t.Errorf("IsMatch() = true, want false")
	}
}

func TestMatchesOrAnyMatches(t *testing.T) {
	m := &Matches{Kind: MatchOr, Children: []*Matches{
		{Kind: MatchOutRe, Re: "x"},
		{Kind: MatchErrRe, Re: "y"},
	}}
	got, err := m.IsMatch("", "has y")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if !got {
		t.Errorf("IsMatch() = false, want true")
	}
}

func TestMatchesNilNeverMatches(t *testing.T) {
	var m *Matches
	got, err := m.IsMatch("anything", "anything")
	if err != nil {
		t.Fatalf("IsMatch() error: %v", err)
	}
	if got {
		t.Errorf("IsMatch() = true, want false")
	}
}

func TestMatchesToJSON(t *testing.T) {
	m := &Matches{Kind: MatchAnd, Children: []*Matches{
		{Kind: MatchOutRe, Re: "a"},
	}}
	j := m.ToJSON()
	children, ok := j["and"].([]jsonMatches)
	if !ok || len(children) != 1 {
		t.Fatalf("ToJSON() = %v", j)
	}
	if children[0]["out-re"] != "a" {
		t.Errorf("ToJSON() children[0] = %v", children[0])
	}
}

type fakeRunner struct {
	out *Output
	err error
}

func (f fakeRunner) Run(ctx context.Context, argv []string, stdin string) (*Output, error) {
	return f.out, f.err
}

func TestRunSuccessDefault(t *testing.T) {
	r := fakeRunner{out: &Output{Stdout: "hi\n", ExitCode: 0}}
	got, err := Run(context.Background(), r, []string{"echo", "hi"}, CmdParams{}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got != "hi\n" {
		t.Errorf("Run() = %v, want stdout", got)
	}
}

func TestRunFailsOnExitCodeByDefault(t *testing.T) {
	r := fakeRunner{out: &Output{ExitCode: 1}}
	_, err := Run(context.Background(), r, []string{"false"}, CmdParams{}, nil)
	if err == nil {
		t.Fatal("Run() expected error for non-zero exit code")
	}
}

func TestRunCheckFalseIgnoresExitCode(t *testing.T) {
	no := false
	r := fakeRunner{out: &Output{ExitCode: 7, Stdout: "still ran"}}
	got, err := Run(context.Background(), r, []string{"false"}, CmdParams{Check: &no}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got != "still ran" {
		t.Errorf("Run() = %v", got)
	}
}

func TestRunCustomSuccessCodes(t *testing.T) {
	r := fakeRunner{out: &Output{ExitCode: 2}}
	_, err := Run(context.Background(), r, []string{"cmd"}, CmdParams{SuccessCodes: []int{2, 3}}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunFailureMatchesTakesPriority(t *testing.T) {
	r := fakeRunner{out: &Output{ExitCode: 0, Stdout: "ERROR: bad"}}
	params := CmdParams{FailureMatches: &Matches{Kind: MatchOutRe, Re: "ERROR"}}
	_, err := Run(context.Background(), r, []string{"cmd"}, params, nil)
	if err == nil {
		t.Fatal("Run() expected failure_matches error")
	}
}

func TestRunSuccessMatchesRequired(t *testing.T) {
	r := fakeRunner{out: &Output{ExitCode: 0, Stdout: "no marker here"}}
	params := CmdParams{SuccessMatches: &Matches{Kind: MatchOutRe, Re: "DONE"}}
	_, err := Run(context.Background(), r, []string{"cmd"}, params, nil)
	if err == nil {
		t.Fatal("Run() expected success_matches error")
	}
}

func TestRunResultStdoutLines(t *testing.T) {
	r := fakeRunner{out: &Output{Stdout: "a\nb\nc\n"}}
	got, err := Run(context.Background(), r, []string{"cmd"}, CmdParams{Result: ResultStdoutLines}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	lines, ok := got.([]string)
	if !ok || len(lines) != 3 {
		t.Fatalf("Run() = %v", got)
	}
}

func TestRunResultRC(t *testing.T) {
	r := fakeRunner{out: &Output{ExitCode: 0}}
	got, err := Run(context.Background(), r, []string{"cmd"}, CmdParams{Result: ResultRC}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got != 0 {
		t.Errorf("Run() = %v, want 0", got)
	}
}

func TestRunResultMatched(t *testing.T) {
	r := fakeRunner{out: &Output{Stdout: "DONE"}}
	params := CmdParams{Result: ResultMatched, SuccessMatches: &Matches{Kind: MatchOutRe, Re: "DONE"}}
	got, err := Run(context.Background(), r, []string{"cmd"}, params, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got != true {
		t.Errorf("Run() = %v, want true", got)
	}
}
