// Package node is the routing hub. A single loop receives domain-tagged events and
// forwards them to storage, the module runner or the console without waiting on any
// of them.
package node

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tldr-it-stepankutaj/reconkit/internal/command"
	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/mailbox"
)

// Outbox is a downstream subsystem queue.
type Outbox interface {
	Send(e event.Event) error
}

// Parser turns operator text into a command.
type Parser func(text string) (command.Command, error)

// Channels are the endpoints built once at startup and owned by the hub.
type Channels struct {
	Inbox   *mailbox.Mailbox[event.Envelope]
	Storage Outbox
	Modules Outbox
	CLI     Outbox
}

type Node struct {
	inbox   *mailbox.Mailbox[event.Envelope]
	storage Outbox
	modules Outbox
	cli     Outbox
	parse   Parser
	log     *logrus.Entry
}

type Option func(*Node)

// WithParser replaces command.Parse.
func WithParser(p Parser) Option {
	return func(n *Node) { n.parse = p }
}

func New(ch Channels, log *logrus.Entry, opts ...Option) *Node {
	n := &Node{
		inbox:   ch.Inbox,
		storage: ch.Storage,
		modules: ch.Modules,
		cli:     ch.CLI,
		parse:   command.Parse,
		log:     log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Emitter lets collaborators send events back into the hub.
func (n *Node) Emitter() event.Emitter {
	return event.Into(n.inbox)
}

// Submit queues raw operator text.
func (n *Node) Submit(text string) error {
	return n.inbox.Send(event.Wrap(event.NewCommand{Text: text}))
}

// Run routes events until ctx is done or the inbox is closed. Receiving from the
// inbox is the only point where the loop waits.
func (n *Node) Run(ctx context.Context) error {
	n.log.Info("running node...")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-n.inbox.Recv():
			if !ok {
				return nil
			}
			if err := n.route(env); err != nil {
				n.log.WithError(err).WithField("domain", env.Domain).Warnf("failed to route %T", env.Event)
			}
		}
	}
}

func (n *Node) route(env event.Envelope) error {
	switch env.Domain {
	case event.Data:
		return n.storage.Send(env.Event)
	case event.Node:
		if c, ok := env.Event.(event.NewCommand); ok {
			return n.onCommand(c.Text)
		}
		return nil
	case event.Module:
		switch env.Event.(type) {
		case event.ExecuteModule, event.ListModules:
			return n.modules.Send(env.Event)
		}
		return nil
	case event.Network:
		return nil
	case event.CLI:
		return n.cli.Send(env.Event)
	default:
		return fmt.Errorf("unknown domain %d", env.Domain)
	}
}

func (n *Node) onCommand(text string) error {
	cmd, err := n.parse(text)
	if err != nil {
		return n.cli.Send(event.ResponseError{Message: err.Error()})
	}
	ev, ok := Dispatch(cmd)
	if !ok {
		n.log.WithField("command", text).Debug("command has no handler")
		return nil
	}
	return n.emit(ev)
}

// emit sends ev straight to the subsystem owning its domain.
func (n *Node) emit(ev event.Event) error {
	switch ev.Domain() {
	case event.Data:
		return n.storage.Send(ev)
	case event.Module:
		return n.modules.Send(ev)
	case event.CLI:
		return n.cli.Send(ev)
	default:
		return fmt.Errorf("no subsystem for %s events", ev.Domain())
	}
}

// Dispatch maps a parsed command to the single event it produces. The second result
// is false for every (object, action) pair without a handler.
func Dispatch(cmd command.Command) (event.Event, bool) {
	obj := cmd.Object()
	switch obj.Kind {
	case command.Module:
		switch cmd.Action() {
		case command.Help:
			return event.HelpModule{Name: obj.Name}, true
		case command.List:
			return event.ListModules{}, true
		case command.Run:
			return event.PrepareModule{Module: obj.Name, Command: cmd}, true
		}
	case command.Export:
		return event.CommandExport{Command: cmd}, true
	case command.Target:
		return event.CommandTarget{Command: cmd}, true
	case command.Group:
		return event.CommandGroup{Command: cmd}, true
	case command.Workspace:
		return event.CommandWorkspace{Command: cmd}, true
	case command.Keystore:
		return event.CommandKeystore{Command: cmd}, true
	case command.Link:
		return event.CommandLink{Command: cmd}, true
	case command.None:
		if cmd.Action() == command.Help {
			return event.ResponseHelp{Text: Help()}, true
		}
	}
	return nil, false
}
