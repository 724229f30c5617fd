package modules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

// Module is a pluggable reconnaissance technique.
type Module interface {
	// Name returns a unique identifier for the module, e.g. "linkedin.search".
	Name() string
	Author() string
	// Description returns a short human-readable description.
	Description() string
	// Args declares accepted parameters. The runner validates against it before Run.
	Args() []param.Arg
	// TargetType is the kind of target the module runs against.
	TargetType() target.Type
	// Run executes the technique. It must not share mutable state with other
	// invocations. Every returned target should reference tgt as its parent.
	// progress may be nil.
	Run(ctx context.Context, groupID int64, tgt target.Target, args param.Args, progress event.Emitter) ([]target.Target, error)
}

// Info describes m for listings and help output.
func Info(m Module) event.ModuleInfo {
	return event.ModuleInfo{
		Name:        m.Name(),
		Author:      m.Author(),
		Description: m.Description(),
		TargetType:  m.TargetType(),
		Args:        m.Args(),
	}
}

// Registry stores available modules by name.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds m. Names must be unique.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.modules[m.Name()]; dup {
		return fmt.Errorf("module %q already registered", m.Name())
	}
	r.modules[m.Name()] = m
	return nil
}

// MustRegister is Register for static wiring at startup.
func (r *Registry) MustRegister(ms ...Module) *Registry {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// All returns the modules sorted by name.
func (r *Registry) All() []Module {
	r.mu.RLock()
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
