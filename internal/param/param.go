// Package param declares module parameters and resolves supplied values against them.
package param

import (
	"fmt"
	"sort"
)

// Arg declares one module parameter. Mutable arguments may be overridden by the
// operator; an immutable argument with a default always keeps that default.
type Arg struct {
	Name     string
	Required bool
	Mutable  bool
	Default  *string
}

// New declares an argument. def may be nil.
func New(name string, required, mutable bool, def *string) Arg {
	return Arg{Name: name, Required: required, Mutable: mutable, Default: def}
}

// Default is a helper for declaring string defaults inline.
func Default(v string) *string { return &v }

func (a Arg) HasDefault() bool { return a.Default != nil }

func (a Arg) DefaultValue() string {
	if a.Default == nil {
		return ""
	}
	return *a.Default
}

// Value is a resolved argument.
type Value struct {
	Arg
	Value string
}

// Args maps parameter names to resolved values.
type Args map[string]Value

// Get returns the resolved argument or false when the module was given no value.
func (a Args) Get(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok
}

// String returns the value or "" when absent.
func (a Args) String(name string) string {
	return a[name].Value
}

// Names returns the resolved names in sorted order.
func (a Args) Names() []string {
	names := make([]string, 0, len(a))
	for n := range a {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MissingError reports a required argument with no value and no default.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required argument %q", e.Name)
}

// LockedError reports an attempt to override an immutable argument's default.
type LockedError struct {
	Name string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("argument %q is not editable", e.Name)
}

// Resolve matches supplied values against the declaration. An empty or missing value
// falls back to the default. Undeclared keys are ignored.
func Resolve(declared []Arg, supplied map[string]string) (Args, error) {
	out := make(Args, len(declared))
	for _, arg := range declared {
		v, ok := supplied[arg.Name]
		given := ok && v != ""
		switch {
		case given && !arg.Mutable && arg.HasDefault() && v != arg.DefaultValue():
			return nil, &LockedError{Name: arg.Name}
		case given:
			out[arg.Name] = Value{Arg: arg, Value: v}
		case arg.HasDefault():
			out[arg.Name] = Value{Arg: arg, Value: arg.DefaultValue()}
		case arg.Required:
			return nil, &MissingError{Name: arg.Name}
		}
	}
	return out, nil
}
