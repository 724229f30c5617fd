package recon

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

const Name = "tcp.connect"

// DefaultPorts is probed when the operator does not pick ports.
const DefaultPorts = "21,22,23,25,53,80,110,135,139,143,443,445,993,995,1433,3306,3389,5432,8080,8443"

// Module implements a TCP connect probe against a host target.
type Module struct {
	dialTimeout time.Duration
}

func New(dialTimeout time.Duration) *Module {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &Module{dialTimeout: dialTimeout}
}

func (*Module) Name() string            { return Name }
func (*Module) Author() string          { return "reconkit" }
func (*Module) Description() string     { return "Basic TCP connect probe for a host" }
func (*Module) TargetType() target.Type { return target.Host }

func (*Module) Args() []param.Arg {
	return []param.Arg{
		param.New("target_id", true, false, nil),
		param.New("ports", false, true, param.Default(DefaultPorts)),
		param.New("concurrency", false, true, param.Default("50")),
	}
}

// Run probes every port and returns one service target per open port.
func (m *Module) Run(ctx context.Context, _ int64, tgt target.Target, args param.Args, progress event.Emitter) ([]target.Target, error) {
	ports, err := parsePorts(args.String("ports"))
	if err != nil {
		return nil, modules.Fail(Name, err)
	}
	concurrency, err := strconv.Atoi(args.String("concurrency"))
	if err != nil || concurrency <= 0 {
		return nil, modules.Failf(Name, "concurrency must be a positive integer, got %q", args.String("concurrency"))
	}

	host := tgt.Name
	if addr, ok := tgt.Field(target.FieldAddress); ok && addr != "" {
		host = addr
	}

	open, err := probe(ctx, host, ports, m.dialTimeout, concurrency, func(p int) {
		if progress != nil {
			_ = progress.Emit(event.ModuleProgress{Module: Name, Message: fmt.Sprintf("%s:%d open", host, p)})
		}
	})
	if err != nil {
		return nil, modules.Fail(Name, err)
	}

	services := make([]target.Target, 0, len(open))
	for _, p := range open {
		fields := map[string]string{
			target.FieldName: net.JoinHostPort(host, strconv.Itoa(p)),
			target.FieldType: target.Service.String(),
			target.FieldHost: host,
			target.FieldPort: strconv.Itoa(p),
		}
		if tgt.ID != 0 {
			fields[target.FieldParent] = strconv.FormatInt(tgt.ID, 10)
		}
		svc, err := target.FromFields(fields)
		if err != nil {
			return nil, modules.Fail(Name, err)
		}
		services = append(services, svc)
	}
	return services, nil
}

func parsePorts(list string) ([]int, error) {
	var ports []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, hi = a, b
		}
		start, err1 := strconv.Atoi(lo)
		end, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil || start < 1 || end > 65535 || start > end {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		for p := start; p <= end; p++ {
			if !seen[p] {
				seen[p] = true
				ports = append(ports, p)
			}
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports to probe")
	}
	return ports, nil
}

// probe performs concurrent TCP connect attempts and returns open ports in order.
func probe(ctx context.Context, host string, ports []int, dialTimeout time.Duration, concurrency int, onOpen func(int)) ([]int, error) {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make([]int, 0, 8)

	dialer := &net.Dialer{Timeout: dialTimeout}

	for _, p := range ports {
		p := p
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			addr := net.JoinHostPort(host, strconv.Itoa(p))
			cctx, cancel := context.WithTimeout(ctx, dialTimeout)
			conn, err := dialer.DialContext(cctx, "tcp", addr)
			cancel()
			if err == nil {
				_ = conn.Close()
				mu.Lock()
				out = append(out, p)
				mu.Unlock()
				onOpen(p)
			}
		}()
	}
	wg.Wait()
	sort.Ints(out)
	return out, nil
}
