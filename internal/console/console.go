package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
)

// Prompt is printed before every input line.
const Prompt = "reconkit> "

// Submitter queues operator text for the hub.
type Submitter interface {
	Submit(text string) error
}

// IsExit reports whether line asks to leave the console.
func IsExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit":
		return true
	}
	return false
}

// Console reads commands line by line and prints console events as they arrive.
type Console struct {
	in  io.Reader
	out io.Writer
	hub Submitter
	log *logrus.Entry
}

func New(in io.Reader, out io.Writer, hub Submitter, log *logrus.Entry) *Console {
	return &Console{in: in, out: out, hub: hub, log: log}
}

// Run returns on exit/quit, end of input, a closed event channel or ctx cancellation.
func (c *Console) Run(ctx context.Context, events <-chan event.Event) error {
	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if text := Render(ev); text != "" {
				fmt.Fprintf(c.out, "\n%s\n", text)
				c.prompt()
			}
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			line = strings.TrimSpace(line)
			if IsExit(line) {
				return nil
			}
			if line != "" {
				if err := c.hub.Submit(line); err != nil {
					c.log.WithError(err).Warn("failed to submit command")
					return err
				}
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, Prompt)
}
