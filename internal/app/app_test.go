package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/workspace"
)

func startSystem(t *testing.T) *System {
	t.Helper()
	ws, err := workspace.Ensure(filepath.Join(t.TempDir(), "work"))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	appCtx := Context{
		Ctx:       context.Background(),
		Config:    Config{Workspace: ws.Root, Database: ws.Path("reconkit.db"), Timeout: time.Second},
		Workspace: ws,
		Log:       logger,
	}
	sys, err := Build(appCtx, NewRegistry(appCtx.Config.Timeout))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, sys.Close())
	})
	return sys
}

func next(t *testing.T, sys *System) event.Event {
	t.Helper()
	select {
	case ev := <-sys.Events():
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("no console event")
		return nil
	}
}

func TestNewRegistry(t *testing.T) {
	all := NewRegistry(time.Second).All()
	names := make([]string, 0, len(all))
	for _, m := range all {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"dns.resolve", "http.crawl", "linkedin.search", "tcp.connect", "tls.certificate"}, names)
}

func TestSystemRoutesCommands(t *testing.T) {
	sys := startSystem(t)

	require.NoError(t, sys.Submit("module list"))
	mods, ok := next(t, sys).(event.ResponseModules)
	require.True(t, ok)
	assert.Len(t, mods.Modules, 3)

	require.NoError(t, sys.Submit(`target add company name="Acme Corp"`))
	msg, ok := next(t, sys).(event.ResponseMessage)
	require.True(t, ok)
	assert.Contains(t, msg.Message, "Acme Corp")

	require.NoError(t, sys.Submit("module run tcp.connect target_id=1"))
	failure, ok := next(t, sys).(event.ResponseError)
	require.True(t, ok)
	assert.Contains(t, failure.Message, "expects a host target")

	require.NoError(t, sys.Submit("bogus"))
	_, ok = next(t, sys).(event.ResponseError)
	assert.True(t, ok)
}

func TestSystemRunsModulesEndToEnd(t *testing.T) {
	sys := startSystem(t)

	require.NoError(t, sys.Submit("target add host name=127.0.0.1"))
	_, ok := next(t, sys).(event.ResponseMessage)
	require.True(t, ok)

	// Port 1 is closed on test machines, so the probe finds nothing.
	require.NoError(t, sys.Submit("module run tcp.connect target_id=1 ports=1"))
	for {
		switch ev := next(t, sys).(type) {
		case event.ModuleProgress:
			continue
		case event.ResponseTargets:
			assert.Equal(t, "tcp.connect", ev.Module)
			assert.Empty(t, ev.Targets)
			return
		default:
			t.Fatalf("unexpected %#v", ev)
		}
	}
}
