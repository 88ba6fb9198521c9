package cli

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls    []string
	lastArgs []string
	failWith error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.lastArgs = args
	return f.failWith
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error {
	return f.record("register", nil)
}
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login", nil)
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout", nil)
}
func (f *fakeExec) State(context.Context) error { return f.record("state", nil) }
func (f *fakeExec) History(_ context.Context, args []string) error {
	return f.record("history", args)
}
func (f *fakeExec) Show(_ context.Context, args []string) error { return f.record("show", args) }
func (f *fakeExec) Confirm(_ context.Context, args []string) error {
	return f.record("confirm", args)
}
func (f *fakeExec) Undo(_ context.Context, args []string) error { return f.record("undo", args) }
func (f *fakeExec) Mistake(_ context.Context, args []string) error {
	return f.record("mistake", args)
}
func (f *fakeExec) Deny(_ context.Context, args []string) error { return f.record("deny", args) }
func (f *fakeExec) Stats(context.Context) error                 { return f.record("stats", nil) }
func (f *fakeExec) Notifications(_ context.Context, args []string) error {
	return f.record("notifications", args)
}
func (f *fakeExec) PushCmd(_ context.Context, args []string) error {
	return f.record("push", args)
}
func (f *fakeExec) Admin(_ context.Context, args []string) error { return f.record("admin", args) }

func silencePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) {
		parts := make([]string, 0, len(a))
		for _, v := range a {
			parts = append(parts, strings.TrimSpace(strings.Trim(strings.Trim(stringify(v), "\n"), " ")))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return ""
}

func runScript(t *testing.T, exec *fakeExec, lines ...string) {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "(test)" }, sc)
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silencePrint(t)
	exec := &fakeExec{}

	runScript(t, exec,
		"help",
		"login",
		"state",
		"history 7d",
		"confirm evt-1",
		"undo evt-1",
		"stats",
		"bogus",
		"exit",
	)

	assert.Equal(t, []string{"login", "state", "history", "confirm", "undo", "stats"}, exec.calls)
}

func TestRunREPL_PassesArgs(t *testing.T) {
	silencePrint(t)
	exec := &fakeExec{loggedIn: true}

	runScript(t, exec, "confirm evt-42", "exit")
	assert.Equal(t, []string{"evt-42"}, exec.lastArgs)

	runScript(t, exec, "admin invite 3 48", "exit")
	assert.Equal(t, []string{"invite", "3", "48"}, exec.lastArgs)
}

func TestRunREPL_AliasesAndBlankLines(t *testing.T) {
	silencePrint(t)
	exec := &fakeExec{loggedIn: true}

	runScript(t, exec, "", "   ", "h", "n", "quit")
	assert.Equal(t, []string{"history", "notifications"}, exec.calls)
}

func TestRunREPL_CommandErrorKeepsLoopAlive(t *testing.T) {
	lines := silencePrint(t)
	exec := &fakeExec{failWith: errors.New("boom")}

	runScript(t, exec, "state", "state", "exit")

	assert.Equal(t, []string{"state", "state"}, exec.calls)
	joined := strings.Join(*lines, "\n")
	assert.Contains(t, joined, "boom")
}

func TestRunREPL_ExitsOnEOF(t *testing.T) {
	silencePrint(t)
	exec := &fakeExec{}

	runScript(t, exec, "state")
	assert.Equal(t, []string{"state"}, exec.calls)
}
