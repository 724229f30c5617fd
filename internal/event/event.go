// Package event defines the closed set of messages exchanged between the hub and its
// subsystems. Every variant belongs to exactly one Domain, fixed by its type.
package event

import (
	"github.com/tldr-it-stepankutaj/reconkit/internal/command"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

// Domain is the routing category of an event.
type Domain int

const (
	Data Domain = iota
	Node
	Module
	Network
	CLI
)

func (d Domain) String() string {
	switch d {
	case Data:
		return "data"
	case Node:
		return "node"
	case Module:
		return "module"
	case Network:
		return "network"
	case CLI:
		return "cli"
	default:
		return "unknown"
	}
}

// Event is implemented only by the variants in this package.
type Event interface {
	Domain() Domain
	event()
}

// Envelope pairs an event with its domain for the hub queue.
type Envelope struct {
	Domain Domain
	Event  Event
}

// Wrap classifies e by its type.
func Wrap(e Event) Envelope {
	return Envelope{Domain: e.Domain(), Event: e}
}

// Request asks the module subsystem to run one module against one target.
type Request struct {
	ID      string
	Module  string
	GroupID int64
	Target  target.Target
	Params  map[string]string
}

// ModuleInfo is the static description of a module.
type ModuleInfo struct {
	Name        string
	Author      string
	Description string
	TargetType  target.Type
	Args        []param.Arg
}

// Node domain.

type NewCommand struct{ Text string }

// Data domain.

type PrepareModule struct {
	Module  string
	Command command.Command
}

type CommandExport struct{ Command command.Command }
type CommandTarget struct{ Command command.Command }
type CommandGroup struct{ Command command.Command }
type CommandWorkspace struct{ Command command.Command }
type CommandKeystore struct{ Command command.Command }
type CommandLink struct{ Command command.Command }

// TargetsDiscovered carries module output to storage.
type TargetsDiscovered struct {
	RequestID string
	Module    string
	GroupID   int64
	ParentID  int64
	Targets   []target.Target
}

// Module domain.

type ExecuteModule struct{ Request Request }
type ListModules struct{}
type HelpModule struct{ Name string }

// Network domain. Reserved for node-to-node links; the hub does not route it yet.

type PeerAnnounce struct{ Addr string }

// CLI domain.

type ResponseError struct{ Message string }
type ResponseMessage struct{ Message string }
type ResponseHelp struct{ Text string }
type ResponseModules struct{ Modules []ModuleInfo }
type ResponseModuleHelp struct{ Module ModuleInfo }

type ResponseTargets struct {
	Module   string
	ParentID int64
	Targets  []target.Target
}

type ResponseTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

type ModuleProgress struct {
	RequestID string
	Module    string
	Message   string
}

func (NewCommand) Domain() Domain { return Node }

func (PrepareModule) Domain() Domain     { return Data }
func (CommandExport) Domain() Domain     { return Data }
func (CommandTarget) Domain() Domain     { return Data }
func (CommandGroup) Domain() Domain      { return Data }
func (CommandWorkspace) Domain() Domain  { return Data }
func (CommandKeystore) Domain() Domain   { return Data }
func (CommandLink) Domain() Domain       { return Data }
func (TargetsDiscovered) Domain() Domain { return Data }

func (ExecuteModule) Domain() Domain { return Module }
func (ListModules) Domain() Domain   { return Module }
func (HelpModule) Domain() Domain    { return Module }

func (PeerAnnounce) Domain() Domain { return Network }

func (ResponseError) Domain() Domain      { return CLI }
func (ResponseMessage) Domain() Domain    { return CLI }
func (ResponseHelp) Domain() Domain       { return CLI }
func (ResponseModules) Domain() Domain    { return CLI }
func (ResponseModuleHelp) Domain() Domain { return CLI }
func (ResponseTargets) Domain() Domain    { return CLI }
func (ResponseTable) Domain() Domain      { return CLI }
func (ModuleProgress) Domain() Domain     { return CLI }

func (NewCommand) event()         {}
func (PrepareModule) event()      {}
func (CommandExport) event()      {}
func (CommandTarget) event()      {}
func (CommandGroup) event()       {}
func (CommandWorkspace) event()   {}
func (CommandKeystore) event()    {}
func (CommandLink) event()        {}
func (TargetsDiscovered) event()  {}
func (ExecuteModule) event()      {}
func (ListModules) event()        {}
func (HelpModule) event()         {}
func (PeerAnnounce) event()       {}
func (ResponseError) event()      {}
func (ResponseMessage) event()    {}
func (ResponseHelp) event()       {}
func (ResponseModules) event()    {}
func (ResponseModuleHelp) event() {}
func (ResponseTargets) event()    {}
func (ResponseTable) event()      {}
func (ModuleProgress) event()     {}
