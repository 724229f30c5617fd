// Package dns resolves a domain target into host targets.
package dns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

const Name = "dns.resolve"

type lookupFunc func(ctx context.Context, resolver, host string) ([]net.IPAddr, error)

// Module implements modules.Module for A/AAAA resolution.
type Module struct {
	timeout time.Duration
	lookup  lookupFunc
}

func New(timeout time.Duration) *Module {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Module{timeout: timeout, lookup: lookupIPAddr(timeout)}
}

func (*Module) Name() string            { return Name }
func (*Module) Author() string          { return "reconkit" }
func (*Module) Description() string     { return "Resolve A/AAAA records of a domain into hosts" }
func (*Module) TargetType() target.Type { return target.Domain }

func (*Module) Args() []param.Arg {
	return []param.Arg{
		param.New("target_id", true, false, nil),
		param.New("resolver", false, true, nil),
		param.New("ipv6", false, true, param.Default("true")),
	}
}

func (m *Module) Run(ctx context.Context, _ int64, tgt target.Target, args param.Args, progress event.Emitter) ([]target.Target, error) {
	withV6, err := strconv.ParseBool(args.String("ipv6"))
	if err != nil {
		return nil, modules.Failf(Name, "ipv6 must be a boolean, got %q", args.String("ipv6"))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	addrs, err := m.lookup(ctx, args.String("resolver"), tgt.Name)
	if err != nil {
		return nil, modules.Failf(Name, "lookup %s: %v", tgt.Name, err)
	}

	seen := make(map[string]bool, len(addrs))
	hosts := make([]target.Target, 0, len(addrs))
	for _, a := range addrs {
		ip := a.IP.String()
		record := "A"
		if a.IP.To4() == nil {
			record = "AAAA"
		}
		if seen[ip] || (record == "AAAA" && !withV6) {
			continue
		}
		seen[ip] = true

		fields := map[string]string{
			target.FieldName:    ip,
			target.FieldType:    target.Host.String(),
			target.FieldAddress: ip,
			target.FieldRecord:  record,
		}
		if tgt.ID != 0 {
			fields[target.FieldParent] = strconv.FormatInt(tgt.ID, 10)
		}
		h, err := target.FromFields(fields)
		if err != nil {
			return nil, modules.Fail(Name, err)
		}
		hosts = append(hosts, h)
	}

	// Sort results for stable output.
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })

	if progress != nil {
		_ = progress.Emit(event.ModuleProgress{Module: Name, Message: fmt.Sprintf("%s resolved to %d addresses", tgt.Name, len(hosts))})
	}
	return hosts, nil
}

func lookupIPAddr(timeout time.Duration) lookupFunc {
	return func(ctx context.Context, server, host string) ([]net.IPAddr, error) {
		resolver := net.DefaultResolver
		if server != "" {
			if _, _, err := net.SplitHostPort(server); err != nil {
				server = net.JoinHostPort(server, "53")
			}
			resolver = &net.Resolver{
				PreferGo: true,
				Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
					d := net.Dialer{Timeout: timeout}
					return d.DialContext(ctx, network, server)
				},
			}
		}
		return resolver.LookupIPAddr(ctx, host)
	}
}
