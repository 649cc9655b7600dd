package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

var errHTTP1Only = errors.New("server negotiated http/1.1")

// fingerprintTransport presents a Chrome TLS ClientHello. HTTP/2 is tried first;
// hosts that negotiate http/1.1 are remembered and served by an HTTP/1.1 transport
// whose ClientHello only advertises http/1.1.
type fingerprintTransport struct {
	h2          *http2.Transport
	h1          *http.Transport
	dialTimeout time.Duration
	h1Hosts     sync.Map
}

func newFingerprintTransport(dialTimeout time.Duration) *fingerprintTransport {
	t := &fingerprintTransport{dialTimeout: dialTimeout}
	t.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return t.dialH2(ctx, network, addr)
		},
	}
	t.h1 = &http.Transport{
		DialTLSContext:      t.dialH1,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return t
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	addr := hostPort(req.URL.Host)
	if _, ok := t.h1Hosts.Load(addr); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if _, ok := t.h1Hosts.Load(addr); !ok && !errors.Is(err, errHTTP1Only) {
		return nil, err
	}

	if req.Body != nil && req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", berr)
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

func (t *fingerprintTransport) CloseIdleConnections() {
	t.h2.CloseIdleConnections()
	t.h1.CloseIdleConnections()
}

func (t *fingerprintTransport) dialH2(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := t.handshake(ctx, network, addr, nil)
	if err != nil {
		return nil, err
	}
	if conn.ConnectionState().NegotiatedProtocol != http2.NextProtoTLS {
		conn.Close()
		t.h1Hosts.Store(addr, struct{}{})
		return nil, errHTTP1Only
	}
	return conn, nil
}

func (t *fingerprintTransport) dialH1(ctx context.Context, network, addr string) (net.Conn, error) {
	return t.handshake(ctx, network, addr, []string{"http/1.1"})
}

// handshake dials addr and performs a Chrome 120 handshake. A non-nil alpn replaces
// the protocols the ClientHello advertises.
func (t *fingerprintTransport) handshake(ctx context.Context, network, addr string, alpn []string) (*utls.UConn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	dialer := &net.Dialer{Timeout: t.dialTimeout}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	cfg := &utls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	var conn *utls.UConn
	if alpn == nil {
		conn = utls.UClient(raw, cfg, utls.HelloChrome_120)
	} else {
		spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("failed to load client hello spec: %w", err)
		}
		for _, ext := range spec.Extensions {
			if a, ok := ext.(*utls.ALPNExtension); ok {
				a.AlpnProtocols = alpn
			}
		}
		conn = utls.UClient(raw, cfg, utls.HelloCustom)
		if err := conn.ApplyPreset(&spec); err != nil {
			raw.Close()
			return nil, fmt.Errorf("failed to apply client hello spec: %w", err)
		}
	}

	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return conn, nil
}

func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, "443")
}
