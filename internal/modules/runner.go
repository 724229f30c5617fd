package modules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

// Runner is the module subsystem. It answers listing and help requests and launches
// module executions, each in its own goroutine.
type Runner struct {
	registry *Registry
	hub      event.Emitter
	log      *logrus.Entry

	wg sync.WaitGroup
}

func NewRunner(registry *Registry, hub event.Emitter, log *logrus.Entry) *Runner {
	return &Runner{registry: registry, hub: hub, log: log}
}

// Run consumes events until inbox is closed or ctx is done, then waits for in-flight
// executions to return.
func (r *Runner) Run(ctx context.Context, inbox <-chan event.Event) error {
	defer r.wg.Wait()
	r.log.Info("module runner started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-inbox:
			if !ok {
				return nil
			}
			r.handle(ctx, ev)
		}
	}
}

// Wait blocks until every launched execution has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) handle(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case event.ListModules:
		all := r.registry.All()
		infos := make([]event.ModuleInfo, 0, len(all))
		for _, m := range all {
			infos = append(infos, Info(m))
		}
		r.emit(event.ResponseModules{Modules: infos})
	case event.HelpModule:
		m, ok := r.registry.Get(e.Name)
		if !ok {
			r.emit(event.ResponseError{Message: fmt.Sprintf("unknown module %q", e.Name)})
			return
		}
		r.emit(event.ResponseModuleHelp{Module: Info(m)})
	case event.ExecuteModule:
		if err := r.execute(ctx, e.Request); err != nil {
			r.log.WithError(err).WithField("module", e.Request.Module).Warn("module request rejected")
			r.emit(event.ResponseError{Message: err.Error()})
		}
	default:
		r.log.Debugf("ignoring %T", ev)
	}
}

// execute validates req and launches the module. Validation failures are returned
// before anything runs.
func (r *Runner) execute(ctx context.Context, req event.Request) error {
	m, ok := r.registry.Get(req.Module)
	if !ok {
		return fmt.Errorf("unknown module %q", req.Module)
	}
	if req.Target.Type != m.TargetType() {
		return fmt.Errorf("module %s expects a %s target, got %s", m.Name(), m.TargetType(), req.Target.Type)
	}
	args, err := param.Resolve(m.Args(), req.Params)
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Name(), err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runOne(ctx, m, req, args)
	}()
	return nil
}

func (r *Runner) runOne(ctx context.Context, m Module, req event.Request, args param.Args) {
	log := r.log.WithFields(logrus.Fields{"module": m.Name(), "request": req.ID, "target": req.Target.ID})
	started := time.Now()
	log.Info("module started")
	r.emit(event.ModuleProgress{RequestID: req.ID, Module: m.Name(), Message: "started against " + req.Target.String()})

	found, err := safeRun(ctx, m, req, args, r.progress(req.ID))
	if err != nil {
		err = Fail(m.Name(), err)
		log.WithError(err).Warn("module failed")
		r.emit(event.ResponseError{Message: err.Error()})
		return
	}

	for i := range found {
		if !found[i].HasParent() && req.Target.ID != 0 {
			found[i] = found[i].WithParent(req.Target.ID)
		}
	}
	log.WithFields(logrus.Fields{"found": len(found), "elapsed": time.Since(started).String()}).Info("module finished")
	r.emit(event.TargetsDiscovered{
		RequestID: req.ID,
		Module:    m.Name(),
		GroupID:   req.GroupID,
		ParentID:  req.Target.ID,
		Targets:   found,
	})
}

func safeRun(ctx context.Context, m Module, req event.Request, args param.Args, progress event.Emitter) (found []target.Target, err error) {
	defer func() {
		if p := recover(); p != nil {
			found = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return m.Run(ctx, req.GroupID, req.Target, args, progress)
}

// progress forwards CLI-domain events from modules; anything else is refused.
// Progress lines are stamped with the request they belong to.
func (r *Runner) progress(requestID string) event.Emitter {
	return event.EmitterFunc(func(e event.Event) error {
		if e.Domain() != event.CLI {
			return errors.New("modules may only emit cli events")
		}
		if p, ok := e.(event.ModuleProgress); ok && p.RequestID == "" {
			p.RequestID = requestID
			e = p
		}
		return r.hub.Emit(e)
	})
}

func (r *Runner) emit(e event.Event) {
	if err := r.hub.Emit(e); err != nil {
		r.log.WithError(err).Warnf("failed to emit %T", e)
	}
}
