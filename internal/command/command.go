// Package command holds the structured form of an operator instruction.
package command

import "sort"

// Action is the verb of a command.
type Action string

const (
	Help   Action = "help"
	List   Action = "list"
	Run    Action = "run"
	Add    Action = "add"
	Remove Action = "remove"
	Use    Action = "use"
	Show   Action = "show"
)

var actions = map[string]Action{
	"help":   Help,
	"list":   List,
	"ls":     List,
	"run":    Run,
	"add":    Add,
	"remove": Remove,
	"rm":     Remove,
	"use":    Use,
	"show":   Show,
}

// ObjectKind is the subject a command acts on.
type ObjectKind string

const (
	None      ObjectKind = ""
	Module    ObjectKind = "module"
	Export    ObjectKind = "export"
	Target    ObjectKind = "target"
	Group     ObjectKind = "group"
	Workspace ObjectKind = "workspace"
	Keystore  ObjectKind = "keystore"
	Link      ObjectKind = "link"
)

var objects = map[string]ObjectKind{
	"module":    Module,
	"modules":   Module,
	"export":    Export,
	"target":    Target,
	"targets":   Target,
	"group":     Group,
	"groups":    Group,
	"workspace": Workspace,
	"keystore":  Keystore,
	"link":      Link,
}

// Object is the command subject. Name carries the module name for Module and the
// output format for Export.
type Object struct {
	Kind ObjectKind
	Name string
}

func ModuleObject(name string) Object   { return Object{Kind: Module, Name: name} }
func ExportObject(format string) Object { return Object{Kind: Export, Name: format} }

// Command is immutable once built; accessors return copies.
type Command struct {
	action Action
	object Object
	args   []string
	params map[string]string
}

// New builds a Command, copying args and params.
func New(action Action, object Object, args []string, params map[string]string) Command {
	c := Command{
		action: action,
		object: object,
		args:   append([]string(nil), args...),
		params: make(map[string]string, len(params)),
	}
	for k, v := range params {
		c.params[k] = v
	}
	return c
}

func (c Command) Action() Action { return c.action }
func (c Command) Object() Object { return c.object }

// Args returns positional arguments that are not part of the object.
func (c Command) Args() []string { return append([]string(nil), c.args...) }

// Arg returns the i-th positional argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.args) {
		return ""
	}
	return c.args[i]
}

func (c Command) Param(key string) (string, bool) {
	v, ok := c.params[key]
	return v, ok
}

func (c Command) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// ParamKeys returns parameter names in sorted order.
func (c Command) ParamKeys() []string {
	keys := make([]string, 0, len(c.params))
	for k := range c.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
