package recon

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

func listen(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRunFindsOpenPort(t *testing.T) {
	open := listen(t)
	closed := closedPort(t)

	host, err := target.FromFields(map[string]string{target.FieldName: "127.0.0.1", target.FieldType: "host"})
	require.NoError(t, err)
	host = host.WithID(11)

	m := New(0)
	args, err := param.Resolve(m.Args(), map[string]string{
		"target_id": "11",
		"ports":     strconv.Itoa(open) + "," + strconv.Itoa(closed),
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var progress []event.Event
	em := event.EmitterFunc(func(e event.Event) error {
		mu.Lock()
		progress = append(progress, e)
		mu.Unlock()
		return nil
	})

	services, err := m.Run(context.Background(), 0, host, args, em)
	require.NoError(t, err)
	require.Len(t, services, 1)

	svc := services[0]
	assert.Equal(t, target.Service, svc.Type)
	assert.Equal(t, int64(11), svc.ParentID)
	port, _ := svc.Field(target.FieldPort)
	assert.Equal(t, strconv.Itoa(open), port)
	assert.Len(t, progress, 1)
}

func TestParsePorts(t *testing.T) {
	ports, err := parsePorts("80, 443,8000-8002,80")
	require.NoError(t, err)
	assert.Equal(t, []int{80, 443, 8000, 8001, 8002}, ports)

	for _, bad := range []string{"", "http", "0", "70000", "10-5"} {
		_, err := parsePorts(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunRejectsBadArgs(t *testing.T) {
	host, err := target.FromFields(map[string]string{target.FieldName: "127.0.0.1", target.FieldType: "host"})
	require.NoError(t, err)

	m := New(0)
	for _, supplied := range []map[string]string{
		{"target_id": "1", "ports": "abc"},
		{"target_id": "1", "concurrency": "0"},
	} {
		args, err := param.Resolve(m.Args(), supplied)
		require.NoError(t, err)
		_, err = m.Run(context.Background(), 0, host, args, nil)
		var ee *modules.ExecutionError
		assert.True(t, errors.As(err, &ee))
	}
}
