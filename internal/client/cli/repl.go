package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = func(a ...any) { fmt.Println(a...) }

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	State(ctx context.Context) error
	History(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Confirm(ctx context.Context, args []string) error
	Undo(ctx context.Context, args []string) error
	Mistake(ctx context.Context, args []string) error
	Deny(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Notifications(ctx context.Context, args []string) error
	PushCmd(ctx context.Context, args []string) error
	Admin(ctx context.Context, args []string) error
}

// runREPL reads a line from the scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Errors returned by command handlers are printed and swallowed so a failed
// command never tears down the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("eggs %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: state, (h)istory, show, confirm, undo, mistake, deny, stats, notifications, push, admin, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "state":
			err = a.State(ctx)

		case "h", "history":
			err = a.History(ctx, args)

		case "show":
			err = a.Show(ctx, args)

		case "confirm":
			err = a.Confirm(ctx, args)

		case "undo":
			err = a.Undo(ctx, args)

		case "mistake":
			err = a.Mistake(ctx, args)

		case "deny":
			err = a.Deny(ctx, args)

		case "stats":
			err = a.Stats(ctx)

		case "n", "notifications":
			err = a.Notifications(ctx, args)

		case "push":
			err = a.PushCmd(ctx, args)

		case "admin":
			err = a.Admin(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
