// Package cli is the interactive eggsctl shell: a small REPL over the
// confirmation workflow, the notification list and the admin surface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eggsregaco/regaco/internal/client/api"
	"github.com/eggsregaco/regaco/internal/client/cache"
	"github.com/eggsregaco/regaco/internal/client/config"
	"github.com/eggsregaco/regaco/internal/client/push"
	"github.com/eggsregaco/regaco/internal/client/session"
	"github.com/eggsregaco/regaco/internal/client/workflow"
	"github.com/eggsregaco/regaco/internal/logging"
)

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

type App struct {
	config   *config.Config
	api      *api.Client
	cache    *cache.Store
	session  *session.Store
	workflow *workflow.Workflow
	push     *push.Manager
	log      logging.Logger

	Mode   Mode
	reader *bufio.Reader
}

func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	store, err := cache.Open(ctx, cfg.CacheDBPath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	sess := session.NewStore(store.KV)
	apiClient := api.New(cfg.BackendURL, cfg.RequestTimeout, sess, log)

	var opts []workflow.Option
	if cfg.DenyIsTerminal {
		opts = append(opts, workflow.WithTerminalDeny())
	}
	wf := workflow.New(apiClient, store, sess, log, opts...)

	var agent push.Agent
	if cfg.AgentURL != "" {
		agent = push.NewGatewayAgent(cfg.AgentURL)
	}
	pushMgr := push.NewManager(agent, apiClient, &terminalPermission{reader: bufio.NewReader(os.Stdin)}, log)

	return &App{
		config:   cfg,
		api:      apiClient,
		cache:    store,
		session:  sess,
		workflow: wf,
		push:     pushMgr,
		log:      log,
		Mode:     ModeOnline,
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Close() error { return a.cache.Close() }

func (a *App) isLoggedIn() bool {
	return a.session.Current(context.Background()) != nil
}

func (a *App) userName() string {
	if u := a.session.User(context.Background()); u != nil {
		return u.Username
	}
	return ""
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		printlnFn("Switched to " + string(mode) + " mode")
	}
}

// StartOnlineStatusWatcher probes the backend on an interval and flips the
// online/offline mode indicator accordingly.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.api.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("Welcome to eggsctl (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, 15*time.Second)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) getStatus() string {
	s := ""
	if name := a.userName(); name != "" {
		s = name + " "
	}
	s += string(a.Mode)
	return "(" + s + ")"
}

// terminalPermission implements the push permission prompt on the terminal.
// Query never prompts; the answer is remembered for the session only.
type terminalPermission struct {
	reader  *bufio.Reader
	granted *push.Permission
}

func (p *terminalPermission) Query(context.Context) (push.Permission, error) {
	if p.granted != nil {
		return *p.granted, nil
	}
	return push.PermissionPrompt, nil
}

func (p *terminalPermission) Request(context.Context) (push.Permission, error) {
	if p.granted != nil {
		return *p.granted, nil
	}
	answer, err := getSimpleText(p.reader, "Allow egg notifications on this device? (y/n)", os.Stdout)
	if err != nil {
		return push.PermissionDenied, err
	}
	perm := push.PermissionDenied
	if answer == "y" || answer == "yes" {
		perm = push.PermissionGranted
	}
	p.granted = &perm
	return perm, nil
}
