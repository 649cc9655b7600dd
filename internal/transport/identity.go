package transport

import (
	"net/http"
	"sync/atomic"
)

// Identity is a complete set of browser request headers presented to the site.
// Headers always carries the User-Agent.
type Identity struct {
	Name    string
	Headers http.Header
}

// UserAgent returns the identity's User-Agent header.
func (i Identity) UserAgent() string {
	return i.Headers.Get("User-Agent")
}

// WithUserAgent returns a copy of the identity presenting ua instead.
// Client hints are dropped since they no longer describe the browser.
func (i Identity) WithUserAgent(ua string) Identity {
	h := i.Headers.Clone()
	h.Set("User-Agent", ua)
	h.Del("Sec-Ch-Ua")
	h.Del("Sec-Ch-Ua-Mobile")
	h.Del("Sec-Ch-Ua-Platform")
	return Identity{Name: i.Name + "+solver", Headers: h}
}

// apply sets the identity headers on req without overriding headers the caller set.
func (i Identity) apply(req *http.Request) {
	for k, v := range i.Headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = append([]string(nil), v...)
		}
	}
}

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"
)

func chromeHeaders(ua, platform string) http.Header {
	return http.Header{
		"User-Agent":                {ua},
		"Accept":                    {acceptHTML},
		"Accept-Language":           {acceptLanguage},
		"Sec-Ch-Ua":                 {`"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
		"Sec-Ch-Ua-Mobile":          {"?0"},
		"Sec-Ch-Ua-Platform":        {platform},
		"Sec-Fetch-Dest":            {"document"},
		"Sec-Fetch-Mode":            {"navigate"},
		"Sec-Fetch-Site":            {"none"},
		"Sec-Fetch-User":            {"?1"},
		"Upgrade-Insecure-Requests": {"1"},
	}
}

// defaultIdentities is the rotation pool used when no User-Agent is pinned.
func defaultIdentities() []Identity {
	edge := chromeHeaders("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0", `"Windows"`)
	edge.Set("Sec-Ch-Ua", `"Microsoft Edge";v="131", "Chromium";v="131", "Not_A Brand";v="24"`)

	return []Identity{
		{
			Name:    "chrome-windows",
			Headers: chromeHeaders("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", `"Windows"`),
		},
		{
			Name:    "chrome-macos",
			Headers: chromeHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36", `"macOS"`),
		},
		{
			Name: "firefox-windows",
			Headers: http.Header{
				"User-Agent":                {"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0"},
				"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
				"Accept-Language":           {"en-US,en;q=0.5"},
				"Sec-Fetch-Dest":            {"document"},
				"Sec-Fetch-Mode":            {"navigate"},
				"Sec-Fetch-Site":            {"none"},
				"Sec-Fetch-User":            {"?1"},
				"Upgrade-Insecure-Requests": {"1"},
			},
		},
		{
			Name:    "edge-windows",
			Headers: edge,
		},
	}
}

// identityPool hands out identities round-robin. A pinned User-Agent yields a single-entry pool.
type identityPool struct {
	profiles []Identity
	next     atomic.Uint64
}

func newIdentityPool(pinnedUA string) *identityPool {
	if pinnedUA == "" {
		return &identityPool{profiles: defaultIdentities()}
	}
	h := http.Header{
		"User-Agent":      {pinnedUA},
		"Accept":          {acceptHTML},
		"Accept-Language": {acceptLanguage},
	}
	return &identityPool{profiles: []Identity{{Name: "pinned", Headers: h}}}
}

// Next returns the following identity in rotation order.
func (p *identityPool) Next() Identity {
	n := p.next.Add(1) - 1
	return p.profiles[n%uint64(len(p.profiles))]
}
