// Package app holds runtime configuration and wires the hub to its subsystems.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/logging"
	"github.com/tldr-it-stepankutaj/reconkit/internal/mailbox"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules/dns"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules/linkedin"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules/recon"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules/ssl"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules/web"
	"github.com/tldr-it-stepankutaj/reconkit/internal/node"
	"github.com/tldr-it-stepankutaj/reconkit/internal/storage"
	"github.com/tldr-it-stepankutaj/reconkit/internal/workspace"
)

// Context carries app-wide dependencies and metadata.
type Context struct {
	Ctx       context.Context
	Config    Config
	Workspace WorkspaceHandle
	Log       *logrus.Logger
}

// WorkspaceHandle is a minimal contract the workspace package provides.
type WorkspaceHandle interface {
	Path(parts ...string) string
}

const maxDialTimeout = 2 * time.Second

// NewRegistry registers every built-in module. timeout bounds outbound requests.
func NewRegistry(timeout time.Duration) *modules.Registry {
	dial := timeout
	if dial <= 0 || dial > maxDialTimeout {
		dial = maxDialTimeout
	}
	return modules.NewRegistry().MustRegister(
		linkedin.New(linkedin.Options{Timeout: timeout}),
		dns.New(timeout),
		recon.New(dial),
		ssl.New(timeout),
		web.New(timeout),
	)
}

// System is the hub with its storage, module and console queues.
type System struct {
	Store    *storage.Store
	Registry *modules.Registry
	Node     *node.Node
	Runner   *modules.Runner
	Storage  *storage.Controller

	inbox   *mailbox.Mailbox[event.Envelope]
	data    *mailbox.Mailbox[event.Event]
	modules *mailbox.Mailbox[event.Event]
	cli     *mailbox.Mailbox[event.Event]
}

// Build opens the database and connects every subsystem to a fresh hub.
func Build(appCtx Context, registry *modules.Registry) (*System, error) {
	store, err := storage.Open(appCtx.Ctx, appCtx.Config.Database)
	if err != nil {
		return nil, err
	}

	s := &System{
		Store:    store,
		Registry: registry,
		inbox:    mailbox.New[event.Envelope](),
		data:     mailbox.New[event.Event](),
		modules:  mailbox.New[event.Event](),
		cli:      mailbox.New[event.Event](),
	}
	s.Node = node.New(node.Channels{
		Inbox:   s.inbox,
		Storage: s.data,
		Modules: s.modules,
		CLI:     s.cli,
	}, logging.Component(appCtx.Log, "node"))

	hub := s.Node.Emitter()
	s.Runner = modules.NewRunner(registry, hub, logging.Component(appCtx.Log, "modules"))
	s.Storage = storage.NewController(store, registry, hub, logging.Component(appCtx.Log, "storage"),
		storage.WithExportDir(appCtx.Workspace.Path(workspace.ExportsDir)),
	)
	return s, nil
}

// Events delivers console-bound events.
func (s *System) Events() <-chan event.Event { return s.cli.Recv() }

// Submit queues operator text for the hub.
func (s *System) Submit(text string) error { return s.Node.Submit(text) }

// Run starts the hub, the module runner and the storage controller and blocks until
// ctx is done or one of them fails.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Node.Run(ctx) })
	g.Go(func() error { return s.Runner.Run(ctx, s.modules.Recv()) })
	g.Go(func() error { return s.Storage.Run(ctx, s.data.Recv()) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close drops every queue and closes the database. Call it after Run returns.
func (s *System) Close() error {
	s.inbox.Close()
	s.data.Close()
	s.modules.Close()
	s.cli.Close()
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
