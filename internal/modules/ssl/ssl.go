// Package ssl reads the certificate presented by a TLS service and turns the
// names it covers into domain targets.
package ssl

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

const Name = "tls.certificate"

// Fields stamped on discovered domains.
const (
	FieldIssuer   = "issuer"
	FieldNotAfter = "not_after"
	FieldSource   = "source"
)

type Module struct {
	timeout time.Duration
}

func New(timeout time.Duration) *Module {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Module{timeout: timeout}
}

func (*Module) Name() string            { return Name }
func (*Module) Author() string          { return "reconkit" }
func (*Module) Description() string     { return "Collect domain names from a TLS service certificate" }
func (*Module) TargetType() target.Type { return target.Service }

func (*Module) Args() []param.Arg {
	return []param.Arg{
		param.New("target_id", true, false, nil),
		param.New("server_name", false, true, nil),
		param.New("wildcards", false, true, param.Default("strip")),
	}
}

func (m *Module) Run(ctx context.Context, _ int64, tgt target.Target, args param.Args, progress event.Emitter) ([]target.Target, error) {
	wildcards := args.String("wildcards")
	if wildcards != "strip" && wildcards != "keep" && wildcards != "skip" {
		return nil, modules.Failf(Name, "wildcards must be strip, keep or skip, got %q", wildcards)
	}

	addr, err := serviceAddr(tgt)
	if err != nil {
		return nil, modules.Fail(Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: m.timeout},
		Config: &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
			ServerName:         args.String("server_name"),
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, modules.Failf(Name, "failed to connect to %s: %v", addr, err)
	}
	defer func() { _ = conn.Close() }()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, modules.Failf(Name, "%s presented no certificate", addr)
	}
	cert := state.PeerCertificates[0]

	if progress != nil {
		_ = progress.Emit(event.ModuleProgress{
			Module:  Name,
			Message: fmt.Sprintf("%s: %s using %s, issued by %s", addr, tlsVersionName(state.Version), tls.CipherSuiteName(state.CipherSuite), issuerName(cert)),
		})
	}

	names := certNames(cert, wildcards)
	domains := make([]target.Target, 0, len(names))
	for _, name := range names {
		fields := map[string]string{
			target.FieldName: name,
			target.FieldType: target.Domain.String(),
			FieldIssuer:      issuerName(cert),
			FieldNotAfter:    cert.NotAfter.UTC().Format(time.RFC3339),
			FieldSource:      addr,
		}
		if tgt.ID != 0 {
			fields[target.FieldParent] = strconv.FormatInt(tgt.ID, 10)
		}
		d, err := target.FromFields(fields)
		if err != nil {
			return nil, modules.Fail(Name, err)
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// serviceAddr prefers the host and port fields a probe stamped on the service.
func serviceAddr(tgt target.Target) (string, error) {
	host, _ := tgt.Field(target.FieldHost)
	port, _ := tgt.Field(target.FieldPort)
	if host != "" && port != "" {
		return net.JoinHostPort(host, port), nil
	}
	if h, p, err := net.SplitHostPort(tgt.Name); err == nil {
		return net.JoinHostPort(h, p), nil
	}
	if host == "" {
		host = tgt.Name
	}
	if port == "" {
		port = "443"
	}
	if strings.TrimSpace(host) == "" {
		return "", fmt.Errorf("service %s has no host", tgt)
	}
	return net.JoinHostPort(host, port), nil
}

// certNames returns the lowercased DNS names of the certificate, subject CN included.
func certNames(cert *x509.Certificate, wildcards string) []string {
	raw := append([]string{}, cert.DNSNames...)
	if cn := cert.Subject.CommonName; cn != "" && net.ParseIP(cn) == nil && strings.Contains(cn, ".") {
		raw = append(raw, cn)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(n)), ".")
		if strings.HasPrefix(n, "*.") {
			switch wildcards {
			case "skip":
				continue
			case "strip":
				n = strings.TrimPrefix(n, "*.")
			}
		}
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func issuerName(cert *x509.Certificate) string {
	if cert.Issuer.CommonName != "" {
		return cert.Issuer.CommonName
	}
	if len(cert.Issuer.Organization) > 0 {
		return cert.Issuer.Organization[0]
	}
	return cert.Issuer.String()
}

func tlsVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS13:
		return "TLS 1.3"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS10:
		return "TLS 1.0"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", version)
	}
}
