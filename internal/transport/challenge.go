package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/config"
)

// clearanceCookie is the cookie the anti-bot layer sets once a browser passes its check.
const clearanceCookie = "cf_clearance"

var interstitialMarkers = [][]byte{
	[]byte("<title>Just a moment...</title>"),
	[]byte("challenge-platform"),
	[]byte("cf_chl_opt"),
	[]byte("cf-browser-verification"),
}

var blockMarkers = [][]byte{
	[]byte("Attention Required!"),
	[]byte("cf-error-details"),
	[]byte("Checking your browser"),
}

// IsChallenge reports whether a response is an anti-bot challenge instead of content.
func IsChallenge(status int, header http.Header, body []byte) bool {
	if header.Get("Cf-Mitigated") == "challenge" {
		return true
	}
	head := body
	if len(head) > 32*1024 {
		head = head[:32*1024]
	}
	switch status {
	case http.StatusForbidden:
		// Cloudflare stamps every response it serves with Cf-Ray; a 403 from it is a block.
		return header.Get("Cf-Ray") != "" || containsAny(head, interstitialMarkers) || containsAny(head, blockMarkers)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return containsAny(head, interstitialMarkers) || containsAny(head, blockMarkers)
	case http.StatusOK:
		return containsAny(head, interstitialMarkers)
	}
	return false
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// Token is the proof of a passed challenge. It is valid until ExpiresAt.
type Token struct {
	Value     string
	ExpiresAt time.Time
	// UserAgent is set when the solver passed the challenge with a browser of its own;
	// the session must keep presenting it for the clearance cookie to stay valid.
	UserAgent string
}

// Valid reports whether the token exists and has not expired at now.
func (t Token) Valid(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.Before(t.ExpiresAt)
}

// SolveEnv is everything a solver may use to obtain a token for a fresh session state.
type SolveEnv struct {
	Client   *http.Client
	Jar      http.CookieJar
	Identity Identity
	BaseURL  *url.URL
	TokenTTL time.Duration
	Now      time.Time
}

// ChallengeSolver obtains a challenge token for a freshly built session state.
// Implementations populate env.Jar with whatever cookies the site expects.
type ChallengeSolver interface {
	Name() string
	Solve(ctx context.Context, env SolveEnv) (Token, error)
}

// tokenExpiry caps the TTL at the earliest clearance cookie expiry.
func tokenExpiry(env SolveEnv, cookies []*http.Cookie) time.Time {
	expires := env.Now.Add(env.TokenTTL)
	for _, c := range cookies {
		if c.Name != clearanceCookie {
			continue
		}
		if !c.Expires.IsZero() && c.Expires.Before(expires) {
			expires = c.Expires
		}
		if c.MaxAge > 0 {
			if byAge := env.Now.Add(time.Duration(c.MaxAge) * time.Second); byAge.Before(expires) {
				expires = byAge
			}
		}
	}
	return expires
}

// ----------------------------------------------------------------------------
// WarmupSolver
// ----------------------------------------------------------------------------

// WarmupSolver loads the site root with the new identity and accepts the state
// when the site answers with content. Most soft challenges clear this way.
type WarmupSolver struct{}

func (WarmupSolver) Name() string { return "warmup" }

func (WarmupSolver) Solve(ctx context.Context, env SolveEnv) (Token, error) {
	logger := config.GetLogger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.BaseURL.String()+"/", nil)
	if err != nil {
		return Token{}, fmt.Errorf("failed to create warmup request: %w", err)
	}
	env.Identity.apply(req)

	resp, err := env.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Token{}, ctx.Err()
		}
		return Token{}, &apperrors.TransportError{Kind: apperrors.NetworkUnavailable, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Token{}, &apperrors.TransportError{Kind: apperrors.NetworkUnavailable, URL: req.URL.String(), Err: err}
	}

	if IsChallenge(resp.StatusCode, resp.Header, body) {
		return Token{}, &apperrors.TransportError{
			Kind:   apperrors.ChallengeUnsolvable,
			Status: resp.StatusCode,
			URL:    req.URL.String(),
			Err:    fmt.Errorf("site still serves a challenge to identity %s", env.Identity.Name),
		}
	}
	if resp.StatusCode >= 400 {
		return Token{}, apperrors.NewUpstreamError(resp.StatusCode, req.URL.String())
	}

	token := Token{Value: "warmup", ExpiresAt: tokenExpiry(env, resp.Cookies())}
	for _, c := range env.Jar.Cookies(env.BaseURL) {
		if c.Name == clearanceCookie {
			token.Value = c.Value
		}
	}

	logger.Debug().
		Str("identity", env.Identity.Name).
		Int("cookies", len(env.Jar.Cookies(env.BaseURL))).
		Time("expiresAt", token.ExpiresAt).
		Msg("Warmup request accepted")
	return token, nil
}

// ----------------------------------------------------------------------------
// FlareSolverrSolver
// ----------------------------------------------------------------------------

// FlareSolverrSolver delegates the challenge to a FlareSolverr-compatible service,
// which drives a real browser and returns the resulting cookies and User-Agent.
type FlareSolverrSolver struct {
	Endpoint string
	Client   *http.Client
}

func (s *FlareSolverrSolver) Name() string { return "flaresolverr" }

type flareRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int64  `json:"maxTimeout"`
}

type flareCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

type flareResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL       string        `json:"url"`
		Status    int           `json:"status"`
		Cookies   []flareCookie `json:"cookies"`
		UserAgent string        `json:"userAgent"`
	} `json:"solution"`
}

func (s *FlareSolverrSolver) Solve(ctx context.Context, env SolveEnv) (Token, error) {
	logger := config.GetLogger()
	if s.Endpoint == "" {
		return Token{}, &apperrors.TransportError{Kind: apperrors.ChallengeUnsolvable, Err: fmt.Errorf("no solver endpoint configured")}
	}

	maxTimeout := int64(60000)
	if deadline, ok := ctx.Deadline(); ok {
		maxTimeout = time.Until(deadline).Milliseconds()
	}
	payload, err := json.Marshal(flareRequest{Cmd: "request.get", URL: env.BaseURL.String() + "/", MaxTimeout: maxTimeout})
	if err != nil {
		return Token{}, fmt.Errorf("failed to encode solver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Token{}, ctx.Err()
		}
		return Token{}, &apperrors.TransportError{Kind: apperrors.ChallengeUnsolvable, URL: s.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	var out flareResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&out); err != nil {
		return Token{}, &apperrors.TransportError{Kind: apperrors.ChallengeUnsolvable, Status: resp.StatusCode, URL: s.Endpoint, Err: fmt.Errorf("invalid solver response: %w", err)}
	}
	if !strings.EqualFold(out.Status, "ok") {
		return Token{}, &apperrors.TransportError{Kind: apperrors.ChallengeUnsolvable, Status: resp.StatusCode, URL: s.Endpoint, Err: fmt.Errorf("solver failed: %s", out.Message)}
	}

	cookies := make([]*http.Cookie, 0, len(out.Solution.Cookies))
	for _, fc := range out.Solution.Cookies {
		c := &http.Cookie{
			Name:     fc.Name,
			Value:    fc.Value,
			Path:     fc.Path,
			Domain:   fc.Domain,
			HttpOnly: fc.HTTPOnly,
			Secure:   fc.Secure,
		}
		if fc.Expires > 0 {
			c.Expires = time.Unix(int64(fc.Expires), 0)
		}
		cookies = append(cookies, c)
	}
	env.Jar.SetCookies(env.BaseURL, cookies)

	token := Token{Value: "flaresolverr", ExpiresAt: tokenExpiry(env, cookies), UserAgent: out.Solution.UserAgent}
	for _, c := range cookies {
		if c.Name == clearanceCookie {
			token.Value = c.Value
		}
	}

	logger.Info().
		Int("cookies", len(cookies)).
		Str("userAgent", token.UserAgent).
		Time("expiresAt", token.ExpiresAt).
		Msg("Challenge solved by external solver")
	return token, nil
}

// NewSolver builds the solver named in configuration. Unknown names fall back to warmup.
func NewSolver(name, endpoint string, client *http.Client) ChallengeSolver {
	switch strings.ToLower(name) {
	case "flaresolverr":
		return &FlareSolverrSolver{Endpoint: endpoint, Client: client}
	case "", "warmup":
		return WarmupSolver{}
	default:
		logger := config.GetLogger()
		logger.Warn().Str("solver", name).Msg("Unknown challenge solver, using warmup")
		return WarmupSolver{}
	}
}
