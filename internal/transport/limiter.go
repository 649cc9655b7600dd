package transport

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// spacingTransport holds every outbound request until the shared limiter admits it,
// so concurrent callers never hit the site faster than one request per interval.
type spacingTransport struct {
	limiter   *rate.Limiter
	transport http.RoundTripper
}

func newSpacingTransport(base http.RoundTripper, interval time.Duration) http.RoundTripper {
	if interval <= 0 {
		return base
	}
	return &spacingTransport{
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		transport: base,
	}
}

func (t *spacingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

func (t *spacingTransport) CloseIdleConnections() {
	closeIdle(t.transport)
}
