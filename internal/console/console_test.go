package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/logging"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (r *recorder) Submit(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, text)
	return nil
}

func TestRunSubmitsLinesUntilExit(t *testing.T) {
	hub := &recorder{}
	var out bytes.Buffer
	in := strings.NewReader("module list\n\n   \ntarget list host\nquit\nmodule help ignored\n")

	err := New(in, &out, hub, logging.Nop()).Run(context.Background(), make(chan event.Event))
	require.NoError(t, err)
	assert.Equal(t, []string{"module list", "target list host"}, hub.lines)
	assert.True(t, strings.HasPrefix(out.String(), Prompt))
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	hub := &recorder{}
	err := New(strings.NewReader("help"), io.Discard, hub, logging.Nop()).Run(context.Background(), make(chan event.Event))
	require.NoError(t, err)
	assert.Equal(t, []string{"help"}, hub.lines)
}

func TestRunPrintsEvents(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	events := make(chan event.Event, 2)
	events <- event.ResponseMessage{Message: "added target #1"}
	events <- event.ListModules{}
	close(events)

	err := New(pr, &out, &recorder{}, logging.Nop()).Run(context.Background(), events)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "added target #1")
}

func TestRunFailsWhenHubIsGone(t *testing.T) {
	hub := &recorder{err: errors.New("mailbox closed")}
	err := New(strings.NewReader("help\n"), io.Discard, hub, logging.Nop()).Run(context.Background(), make(chan event.Event))
	assert.EqualError(t, err, "mailbox closed")
}

func TestRunHonoursContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(pr, io.Discard, &recorder{}, logging.Nop()).Run(ctx, make(chan event.Event))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsExit(t *testing.T) {
	assert.True(t, IsExit("exit"))
	assert.True(t, IsExit(" QUIT "))
	assert.False(t, IsExit("exit now"))
}

func TestRender(t *testing.T) {
	jane, err := target.FromFields(map[string]string{
		"name": "Jane Doe", "type": "person", "parent": "1", "job_title": "CTO",
	})
	require.NoError(t, err)

	info := event.ModuleInfo{
		Name:        "linkedin.search",
		Author:      "Tristan Granier",
		Description: "Search people of a company",
		TargetType:  target.Company,
		Args: []param.Arg{
			param.New("target_id", true, false, nil),
			param.New("limit", false, true, param.Default("10")),
		},
	}

	cases := []struct {
		name string
		ev   event.Event
		want []string
	}{
		{"error", event.ResponseError{Message: "unknown module"}, []string{"error:", "unknown module"}},
		{"message", event.ResponseMessage{Message: "done"}, []string{"done"}},
		{"help", event.ResponseHelp{Text: "Commands:"}, []string{"Commands:"}},
		{"modules", event.ResponseModules{Modules: []event.ModuleInfo{info}}, []string{"NAME", "linkedin.search", "company", "Tristan Granier"}},
		{"module help", event.ResponseModuleHelp{Module: info}, []string{"linkedin.search", "target type: company", "limit", "10", "REQUIRED"}},
		{"targets", event.ResponseTargets{Module: "linkedin.search", ParentID: 1, Targets: []target.Target{jane.WithID(2)}}, []string{"found 1 targets from #1", "Jane Doe", "job_title=CTO"}},
		{"no targets", event.ResponseTargets{Module: "linkedin.search"}, []string{"linkedin.search found no targets"}},
		{"table", event.ResponseTable{Title: "groups", Headers: []string{"NAME"}, Rows: [][]string{{"dmz"}}}, []string{"groups", "dmz"}},
		{"empty table", event.ResponseTable{Title: "groups", Headers: []string{"NAME"}}, []string{"groups", "(none)"}},
		{"progress", event.ModuleProgress{Module: "tcp.connect", Message: "open 22"}, []string{"[tcp.connect]", "open 22"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Render(tc.ev)
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
		})
	}

	assert.Empty(t, Render(event.ListModules{}))
}
