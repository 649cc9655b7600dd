// Package transport owns the HTTP session used to talk to the subtitle site:
// cookies, browser identity, anti-bot challenge solving, pacing and retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/apperrors"
	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

// maxBodySize caps how much of a single response is read into memory.
const maxBodySize = 32 * 1024 * 1024

// ErrSessionClosed is returned by Execute after Close.
var ErrSessionClosed = errors.New("transport: session closed")

// Request describes one logical request. Form values turn a request into a
// url-encoded POST unless Method says otherwise.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Response is a fully read, decompressed upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        *url.URL
	Body       []byte
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// RetryPolicy is the exponential backoff applied to transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// Settings configures a Session.
type Settings struct {
	BaseURL              string
	ProxyURL             string
	UserAgent            string
	ClientTimeout        time.Duration
	MinRequestInterval   time.Duration
	TokenTTL             time.Duration
	SolveTimeout         time.Duration
	RotateEvery          int
	RefreshAfterFailures int
	TLSFingerprint       bool
	Retry                RetryPolicy
}

// SettingsFromConfig maps the loaded configuration onto session settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		BaseURL:              cfg.BaseURL,
		ProxyURL:             cfg.ProxyConnectionString,
		UserAgent:            cfg.UserAgent,
		ClientTimeout:        config.ParseDuration("client_timeout", cfg.ClientTimeout, 30*time.Second),
		MinRequestInterval:   config.ParseDuration("min_request_interval", cfg.MinRequestInterval, time.Second),
		TokenTTL:             config.ParseDuration("challenge.token_ttl", cfg.Challenge.TokenTTL, 30*time.Minute),
		SolveTimeout:         config.ParseDuration("challenge.solve_timeout", cfg.Challenge.SolveTimeout, 60*time.Second),
		RotateEvery:          cfg.Identity.RotateEvery,
		RefreshAfterFailures: cfg.Identity.RefreshAfterFailures,
		TLSFingerprint:       cfg.Identity.TLSFingerprint,
		Retry: RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  config.ParseDuration("retry.base_delay", cfg.Retry.BaseDelay, time.Second),
			Multiplier: cfg.Retry.Multiplier,
			MaxDelay:   config.ParseDuration("retry.max_delay", cfg.Retry.MaxDelay, 30*time.Second),
		},
	}
}

// Option customizes a Session.
type Option func(*Session)

// WithSolver replaces the challenge solver (WarmupSolver by default).
func WithSolver(solver ChallengeSolver) Option {
	return func(s *Session) { s.solver = solver }
}

// WithRetryTimer sets the factory for the timer used between retries.
func WithRetryTimer(newTimer func() backoff.Timer) Option {
	return func(s *Session) { s.newTimer = newTimer }
}

// WithBaseTransport replaces the network transport under compression and pacing.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(s *Session) { s.base = rt }
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// state is one complete session: replaced as a whole, never mutated.
type state struct {
	jar        http.CookieJar
	client     *http.Client
	identity   Identity
	token      Token
	generation uint64
}

// Status is a snapshot of the session for health reporting.
type Status struct {
	ChallengeValid      bool      `json:"challengeValid"`
	ExpiresAt           time.Time `json:"expiresAt"`
	Identity            string    `json:"identity"`
	Solver              string    `json:"solver"`
	Generation          uint64    `json:"generation"`
	ConsecutiveFailures int64     `json:"consecutiveFailures"`
}

// Session is safe for concurrent use. Refreshes are de-duplicated and only
// install a new state when they succeed.
type Session struct {
	settings   Settings
	baseURL    *url.URL
	solver     ChallengeSolver
	base       http.RoundTripper
	transport  http.RoundTripper
	identities *identityPool
	newTimer   func() backoff.Timer
	now        func() time.Time

	current  atomic.Pointer[state]
	refresh  singleflight.Group
	requests atomic.Int64
	failures atomic.Int64
	closed   atomic.Bool
}

// NewSession builds a session. No request is sent until the first Execute.
func NewSession(settings Settings, opts ...Option) (*Session, error) {
	baseURL, err := url.Parse(strings.TrimRight(settings.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", settings.BaseURL)
	}
	if settings.Retry.Multiplier < 1 {
		settings.Retry.Multiplier = 2
	}
	if settings.SolveTimeout <= 0 {
		settings.SolveTimeout = 60 * time.Second
	}
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = 30 * time.Minute
	}

	s := &Session{
		settings:   settings,
		baseURL:    baseURL,
		solver:     WarmupSolver{},
		identities: newIdentityPool(settings.UserAgent),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.base == nil {
		s.base = s.networkTransport()
	}
	s.transport = newSpacingTransport(newCompressionTransport(s.base), settings.MinRequestInterval)

	initial, err := s.newState(Token{}, 0)
	if err != nil {
		return nil, err
	}
	s.current.Store(initial)
	return s, nil
}

// networkTransport builds the default transport, with an optional proxy or TLS fingerprint.
func (s *Session) networkTransport() http.RoundTripper {
	logger := config.GetLogger()

	if s.settings.TLSFingerprint {
		if s.settings.ProxyURL == "" {
			return newFingerprintTransport(s.settings.ClientTimeout)
		}
		logger.Warn().Msg("TLS fingerprinting is not supported through a proxy, using the standard TLS stack")
	}

	// Clone DefaultTransport to keep its pooling, timeouts and HTTP/2 support
	base := http.DefaultTransport.(*http.Transport).Clone()
	if s.settings.ProxyURL != "" {
		proxyURL, err := url.Parse(s.settings.ProxyURL)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", s.settings.ProxyURL).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			base.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return base
}

func (s *Session) newState(token Token, generation uint64) (*state, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &state{
		jar:        jar,
		client:     &http.Client{Transport: s.transport, Jar: jar, Timeout: s.settings.ClientTimeout},
		identity:   s.identities.Next(),
		token:      token,
		generation: generation,
	}, nil
}

// Status reports the current session state.
func (s *Session) Status() Status {
	st := s.current.Load()
	if st == nil {
		return Status{Solver: s.solver.Name()}
	}
	valid := st.token.Valid(s.now())
	if valid {
		metrics.SessionChallengeValid.Set(1)
	} else {
		metrics.SessionChallengeValid.Set(0)
	}
	return Status{
		ChallengeValid:      valid,
		ExpiresAt:           st.token.ExpiresAt,
		Identity:            st.identity.Name,
		Solver:              s.solver.Name(),
		Generation:          st.generation,
		ConsecutiveFailures: s.failures.Load(),
	}
}

// Close discards the session state and idle connections. Execute fails afterwards.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.current.Store(nil)
	closeIdle(s.transport)
	metrics.SessionChallengeValid.Set(0)
	return nil
}

// Refresh replaces the session state with a freshly solved one.
func (s *Session) Refresh(ctx context.Context) error {
	st := s.current.Load()
	if st == nil {
		return ErrSessionClosed
	}
	return s.refreshFrom(ctx, st.generation, "manual")
}

// refreshFrom refreshes the state the caller observed at generation. Callers that
// observed an already replaced generation return without solving again.
// The solve itself is detached from ctx so an abandoning caller cannot leave a
// half-built state behind; ctx only bounds how long this caller waits.
func (s *Session) refreshFrom(ctx context.Context, generation uint64, reason string) error {
	logger := config.GetLogger()

	ch := s.refresh.DoChan(strconv.FormatUint(generation, 10), func() (any, error) {
		cur := s.current.Load()
		if cur == nil {
			return nil, ErrSessionClosed
		}
		if cur.generation != generation {
			return nil, nil
		}

		solveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.SolveTimeout)
		defer cancel()

		next, err := s.newState(Token{}, generation+1)
		if err != nil {
			return nil, err
		}
		token, err := s.solver.Solve(solveCtx, SolveEnv{
			Client:   next.client,
			Jar:      next.jar,
			Identity: next.identity,
			BaseURL:  s.baseURL,
			TokenTTL: s.settings.TokenTTL,
			Now:      s.now(),
		})
		if err != nil {
			metrics.ChallengeSolvesTotal.WithLabelValues("failure").Inc()
			logger.Warn().Err(err).Str("reason", reason).Str("solver", s.solver.Name()).Msg("Session refresh failed, keeping previous state")
			return nil, err
		}
		if token.UserAgent != "" {
			next.identity = next.identity.WithUserAgent(token.UserAgent)
		}
		next.token = token

		if !s.current.CompareAndSwap(cur, next) {
			// closed while solving
			return nil, ErrSessionClosed
		}
		s.failures.Store(0)
		metrics.ChallengeSolvesTotal.WithLabelValues("success").Inc()
		metrics.SessionRefreshesTotal.WithLabelValues(reason).Inc()
		metrics.SessionChallengeValid.Set(1)
		logger.Info().
			Str("reason", reason).
			Str("identity", next.identity.Name).
			Uint64("generation", next.generation).
			Time("expiresAt", token.ExpiresAt).
			Msg("Session refreshed")
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *Session) newBackOff(ctx context.Context) backoff.BackOff {
	p := s.settings.Retry
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = p.Multiplier
	exp.MaxInterval = p.MaxDelay
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Execute sends req, solving at most one challenge and retrying transient
// failures with exponential backoff. Context errors are returned unwrapped.
func (s *Session) Execute(ctx context.Context, req Request) (*Response, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	logger := config.GetLogger()

	var timer backoff.Timer
	if s.newTimer != nil {
		timer = s.newTimer()
	}

	challenged := false
	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		return s.attempt(ctx, req, &challenged)
	}
	notify := func(err error, next time.Duration) {
		metrics.TransportRetriesTotal.Inc()
		logger.Warn().
			Err(err).
			Str("url", req.URL).
			Int("attempt", attempt).
			Dur("backoff", next).
			Msg("Upstream request failed, retrying")
	}

	resp, err := backoff.RetryNotifyWithTimerAndData(operation, s.newBackOff(ctx), notify, timer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return resp, nil
}

// attempt performs one try of req, including the single challenge replay.
// Non-transient errors are wrapped in backoff.Permanent.
func (s *Session) attempt(ctx context.Context, req Request, challenged *bool) (*Response, error) {
	st, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	for {
		httpReq, err := s.buildRequest(ctx, req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		st.identity.apply(httpReq)

		resp, err := s.send(st, httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			metrics.UpstreamRequestsTotal.WithLabelValues("network_error").Inc()
			s.recordFailure(ctx, st)
			return nil, &apperrors.TransportError{Kind: apperrors.NetworkUnavailable, URL: req.URL, Err: err}
		}

		if IsChallenge(resp.StatusCode, resp.Header, resp.Body) {
			metrics.UpstreamRequestsTotal.WithLabelValues("challenge").Inc()
			if *challenged {
				return nil, backoff.Permanent(&apperrors.TransportError{
					Kind:   apperrors.ChallengeUnsolvable,
					Status: resp.StatusCode,
					URL:    req.URL,
					Err:    errors.New("challenge served again after solving"),
				})
			}
			*challenged = true
			logger := config.GetLogger()
			logger.Info().Str("url", req.URL).Int("status", resp.StatusCode).Msg("Challenge detected, solving")

			if err := s.refreshFrom(ctx, st.generation, "challenge"); err != nil {
				if ctx.Err() != nil {
					return nil, backoff.Permanent(ctx.Err())
				}
				return nil, backoff.Permanent(&apperrors.TransportError{Kind: apperrors.ChallengeUnsolvable, URL: req.URL, Err: err})
			}
			if st = s.current.Load(); st == nil {
				return nil, backoff.Permanent(ErrSessionClosed)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			metrics.UpstreamRequestsTotal.WithLabelValues("rate_limited").Inc()
			s.recordFailure(ctx, st)
			return nil, &apperrors.TransportError{Kind: apperrors.RateLimited, Status: resp.StatusCode, URL: req.URL}
		case resp.StatusCode >= 500:
			metrics.UpstreamRequestsTotal.WithLabelValues("5xx").Inc()
			s.recordFailure(ctx, st)
			return nil, apperrors.NewUpstreamError(resp.StatusCode, req.URL)
		case resp.StatusCode >= 400:
			metrics.UpstreamRequestsTotal.WithLabelValues("4xx").Inc()
			return nil, backoff.Permanent(apperrors.NewUpstreamError(resp.StatusCode, req.URL))
		}

		metrics.UpstreamRequestsTotal.WithLabelValues("success").Inc()
		s.failures.Store(0)
		return resp, nil
	}
}

// prepare returns the state to send with, refreshing first when the token has
// expired or the identity rotation cadence is due.
func (s *Session) prepare(ctx context.Context) (*state, error) {
	st := s.current.Load()
	if st == nil {
		return nil, backoff.Permanent(ErrSessionClosed)
	}

	n := s.requests.Add(1)
	reason := ""
	switch {
	case !st.token.Valid(s.now()):
		reason = "expired"
	case s.settings.RotateEvery > 0 && n%int64(s.settings.RotateEvery) == 0:
		reason = "rotation"
	}
	if reason == "" {
		return st, nil
	}

	if err := s.refreshFrom(ctx, st.generation, reason); err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if reason == "rotation" {
			// the old state is still good
			return st, nil
		}
		var te *apperrors.TransportError
		if errors.As(err, &te) {
			if te.Transient() {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return nil, backoff.Permanent(&apperrors.TransportError{Kind: apperrors.ChallengeUnsolvable, URL: s.baseURL.String(), Err: err})
	}
	if st = s.current.Load(); st == nil {
		return nil, backoff.Permanent(ErrSessionClosed)
	}
	return st, nil
}

// recordFailure counts a transient failure and refreshes the session once the
// configured number of consecutive failures is reached.
func (s *Session) recordFailure(ctx context.Context, st *state) {
	n := s.failures.Add(1)
	limit := s.settings.RefreshAfterFailures
	if limit <= 0 || n < int64(limit) {
		return
	}
	if err := s.refreshFrom(ctx, st.generation, "failures"); err != nil {
		logger := config.GetLogger()
		logger.Debug().Err(err).Int64("failures", n).Msg("Refresh after repeated failures did not succeed")
	}
}

func (s *Session) send(st *state, httpReq *http.Request) (*Response, error) {
	resp, err := st.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL,
		Body:       body,
	}, nil
}

func (s *Session) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL %q: %w", req.URL, err)
	}
	if !target.IsAbs() {
		target = s.baseURL.ResolveReference(target)
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	method := req.Method
	var body io.Reader
	if req.Form != nil {
		if method == "" {
			method = http.MethodPost
		}
		body = strings.NewReader(req.Form.Encode())
	}
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if httpReq.Header.Get("Referer") == "" {
		httpReq.Header.Set("Referer", s.baseURL.String()+"/")
	}
	return httpReq, nil
}
