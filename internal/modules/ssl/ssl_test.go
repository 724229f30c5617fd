package ssl

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/modules"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

func selfSigned(t *testing.T, cn string, names ...string) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		Issuer:       pkix.Name{CommonName: cn},
		DNSNames:     names,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func serveTLS(t *testing.T, cert tls.Certificate) int {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.(*tls.Conn).Handshake()
			_ = c.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func service(t *testing.T, port int) target.Target {
	t.Helper()
	svc, err := target.FromFields(map[string]string{
		target.FieldName: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		target.FieldType: target.Service.String(),
		target.FieldHost: "127.0.0.1",
		target.FieldPort: strconv.Itoa(port),
	})
	require.NoError(t, err)
	return svc.WithID(7)
}

func resolve(t *testing.T, m *Module, supplied map[string]string) param.Args {
	t.Helper()
	args, err := param.Resolve(m.Args(), supplied)
	require.NoError(t, err)
	return args
}

func TestRunCollectsCertificateNames(t *testing.T) {
	port := serveTLS(t, selfSigned(t, "Example Test CA", "www.example.test", "*.example.test", "Example.test"))

	m := New(5 * time.Second)
	var progress []event.Event
	em := event.EmitterFunc(func(e event.Event) error {
		progress = append(progress, e)
		return nil
	})

	domains, err := m.Run(context.Background(), 0, service(t, port), resolve(t, m, map[string]string{"target_id": "7"}), em)
	require.NoError(t, err)

	var names []string
	for _, d := range domains {
		names = append(names, d.Name)
		assert.Equal(t, target.Domain, d.Type)
		assert.Equal(t, int64(7), d.ParentID)
		issuer, _ := d.Field(FieldIssuer)
		assert.Equal(t, "Example Test CA", issuer)
	}
	assert.Equal(t, []string{"example.test", "www.example.test"}, names)
	require.Len(t, progress, 1)
	assert.Contains(t, progress[0].(event.ModuleProgress).Message, "Example Test CA")
}

func TestCertNamesWildcardModes(t *testing.T) {
	cert := &x509.Certificate{
		Subject:  pkix.Name{CommonName: "portal.example.test"},
		DNSNames: []string{"*.example.test", "api.example.test."},
	}
	assert.Equal(t, []string{"api.example.test", "example.test", "portal.example.test"}, certNames(cert, "strip"))
	assert.Equal(t, []string{"*.example.test", "api.example.test", "portal.example.test"}, certNames(cert, "keep"))
	assert.Equal(t, []string{"api.example.test", "portal.example.test"}, certNames(cert, "skip"))
}

func TestServiceAddr(t *testing.T) {
	byName, err := target.FromFields(map[string]string{target.FieldName: "10.0.0.5:8443", target.FieldType: "service"})
	require.NoError(t, err)
	addr, err := serviceAddr(byName)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8443", addr)

	bare, err := target.FromFields(map[string]string{target.FieldName: "mail.example.test", target.FieldType: "service"})
	require.NoError(t, err)
	addr, err = serviceAddr(bare)
	require.NoError(t, err)
	assert.Equal(t, "mail.example.test:443", addr)
}

func TestRunRejectsBadArgs(t *testing.T) {
	m := New(time.Second)
	_, err := m.Run(context.Background(), 0, service(t, 1), resolve(t, m, map[string]string{"target_id": "7", "wildcards": "maybe"}), nil)
	var ee *modules.ExecutionError
	assert.True(t, errors.As(err, &ee))
}

func TestRunReportsConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m := New(time.Second)
	_, err = m.Run(context.Background(), 0, service(t, port), resolve(t, m, map[string]string{"target_id": "7"}), nil)
	var ee *modules.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.Error(), "failed to connect")
}
