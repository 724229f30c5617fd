package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/reconkit/internal/command"
)

func TestEveryVariantHasItsDomain(t *testing.T) {
	cmd := command.New(command.List, command.Object{Kind: command.Target}, nil, nil)
	cases := []struct {
		ev     Event
		domain Domain
	}{
		{NewCommand{Text: "help"}, Node},
		{PrepareModule{Module: "m", Command: cmd}, Data},
		{CommandExport{Command: cmd}, Data},
		{CommandTarget{Command: cmd}, Data},
		{CommandGroup{Command: cmd}, Data},
		{CommandWorkspace{Command: cmd}, Data},
		{CommandKeystore{Command: cmd}, Data},
		{CommandLink{Command: cmd}, Data},
		{TargetsDiscovered{}, Data},
		{ExecuteModule{}, Module},
		{ListModules{}, Module},
		{HelpModule{Name: "m"}, Module},
		{PeerAnnounce{Addr: "10.0.0.1:7000"}, Network},
		{ResponseError{Message: "x"}, CLI},
		{ResponseMessage{}, CLI},
		{ResponseHelp{}, CLI},
		{ResponseModules{}, CLI},
		{ResponseModuleHelp{}, CLI},
		{ResponseTargets{}, CLI},
		{ResponseTable{}, CLI},
		{ModuleProgress{}, CLI},
	}
	for _, tc := range cases {
		env := Wrap(tc.ev)
		assert.Equal(t, tc.domain, env.Domain, "%T", tc.ev)
		assert.Equal(t, tc.ev.Domain(), Wrap(tc.ev).Domain, "classification must be stable")
	}
}

type recorder struct{ got []Envelope }

func (r *recorder) Send(env Envelope) error {
	r.got = append(r.got, env)
	return nil
}

func TestIntoWrapsEvents(t *testing.T) {
	rec := &recorder{}
	em := Into(rec)

	require.NoError(t, em.Emit(ListModules{}))
	require.NoError(t, em.Emit(ResponseError{Message: "boom"}))
	require.NoError(t, Discard.Emit(ListModules{}))

	require.Len(t, rec.got, 2)
	assert.Equal(t, Module, rec.got[0].Domain)
	assert.Equal(t, CLI, rec.got[1].Domain)
}

func TestDomainString(t *testing.T) {
	assert.Equal(t, "network", Network.String())
	assert.Equal(t, "unknown", Domain(42).String())
}
