package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tldr-it-stepankutaj/reconkit/internal/command"
	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
)

// Argument names storage fills in before a module runs.
const (
	ArgTargetID = "target_id"
	ArgTarget   = "target"
	ArgGroup    = "group"
)

// Catalog resolves module names.
type Catalog interface {
	Get(name string) (modules.Module, bool)
}

// Controller is the data subsystem. It handles events sequentially; every failure is
// reported to the console as a ResponseError.
type Controller struct {
	store     *Store
	catalog   Catalog
	hub       event.Emitter
	log       *logrus.Entry
	exportDir string
	clock     func() time.Time
	newID     func() string
}

type ControllerOption func(*Controller)

// WithExportDir sets where exports without an explicit path are written.
func WithExportDir(dir string) ControllerOption {
	return func(c *Controller) { c.exportDir = dir }
}

func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

// WithRequestIDs replaces the uuid request id generator.
func WithRequestIDs(next func() string) ControllerOption {
	return func(c *Controller) { c.newID = next }
}

func NewController(store *Store, catalog Catalog, hub event.Emitter, log *logrus.Entry, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:     store,
		catalog:   catalog,
		hub:       hub,
		log:       log,
		exportDir: "exports",
		clock:     time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes events until inbox is closed or ctx is done.
func (c *Controller) Run(ctx context.Context, inbox <-chan event.Event) error {
	c.log.WithField("workspace", c.store.Current().Name).Info("storage controller started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-inbox:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, ev); err != nil {
				c.log.WithError(err).Warnf("failed to handle %T", ev)
				c.emit(event.ResponseError{Message: err.Error()})
			}
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.PrepareModule:
		return c.prepare(ctx, e)
	case event.TargetsDiscovered:
		return c.discovered(ctx, e)
	case event.CommandTarget:
		return c.targetCommand(ctx, e.Command)
	case event.CommandGroup:
		return c.groupCommand(ctx, e.Command)
	case event.CommandWorkspace:
		return c.workspaceCommand(ctx, e.Command)
	case event.CommandKeystore:
		return c.keystoreCommand(ctx, e.Command)
	case event.CommandLink:
		return c.linkCommand(ctx, e.Command)
	case event.CommandExport:
		return c.export(ctx, e.Command)
	default:
		c.log.Debugf("ignoring %T", ev)
		return nil
	}
}

// prepare turns a module run command into an execution request. The target is loaded
// from the current workspace; declared arguments left empty are filled from the keystore.
func (c *Controller) prepare(ctx context.Context, e event.PrepareModule) error {
	m, ok := c.catalog.Get(e.Module)
	if !ok {
		return fmt.Errorf("unknown module %q", e.Module)
	}
	params := e.Command.Params()

	id, err := targetID(params[ArgTargetID])
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Name(), err)
	}
	tgt, err := c.store.Target(ctx, id)
	if err != nil {
		return err
	}
	params[ArgTargetID] = strconv.FormatInt(tgt.ID, 10)

	for _, arg := range m.Args() {
		if arg.Name == ArgTarget {
			params[ArgTarget] = tgt.Name
			continue
		}
		if params[arg.Name] != "" {
			continue
		}
		secret, err := c.store.Secret(ctx, arg.Name)
		switch {
		case err == nil:
			params[arg.Name] = secret
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}

	var groupID int64
	if name := params[ArgGroup]; name != "" {
		g, err := c.store.GroupByName(ctx, name)
		if err != nil {
			return err
		}
		groupID = g.ID
	}

	req := event.Request{
		ID:      c.newID(),
		Module:  m.Name(),
		GroupID: groupID,
		Target:  tgt,
		Params:  params,
	}
	c.log.WithFields(logrus.Fields{"module": req.Module, "request": req.ID, "target": tgt.ID}).Debug("module prepared")
	return c.hub.Emit(event.ExecuteModule{Request: req})
}

func (c *Controller) discovered(ctx context.Context, e event.TargetsDiscovered) error {
	saved, err := c.store.SaveTargets(ctx, e.GroupID, e.Targets)
	if err != nil {
		return fmt.Errorf("module %s: %w", e.Module, err)
	}
	c.log.WithFields(logrus.Fields{"module": e.Module, "request": e.RequestID, "saved": len(saved)}).Info("targets stored")
	c.emit(event.ResponseTargets{Module: e.Module, ParentID: e.ParentID, Targets: saved})
	return nil
}

func (c *Controller) emit(ev event.Event) {
	if err := c.hub.Emit(ev); err != nil {
		c.log.WithError(err).Warnf("failed to emit %T", ev)
	}
}

func (c *Controller) reply(format string, a ...any) error {
	c.emit(event.ResponseMessage{Message: fmt.Sprintf(format, a...)})
	return nil
}

func targetID(raw string) (int64, error) {
	if raw == "" {
		return 0, &param.MissingError{Name: ArgTargetID}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q is not a target id", ArgTargetID, raw)
	}
	return id, nil
}

func (c *Controller) exportPath(cmd command.Command, ext string) string {
	if p, ok := cmd.Param("path"); ok && p != "" {
		return p
	}
	name := fmt.Sprintf("%s-%s.%s", c.store.Current().Name, c.clock().UTC().Format("20060102-150405"), ext)
	return filepath.Join(c.exportDir, name)
}
