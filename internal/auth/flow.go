// Package auth links a citizen identity through a browser sign-in. A
// loopback HTTP listener plays the role of the redirect target: every
// request it receives is an observed redirect, and the one that matches
// the callback carries the identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds the sign-in settings.
type Config struct {
	CallbackPath   string
	IdentityCookie string
	LooseMatch     bool
	Timeout        time.Duration
}

const (
	redirectParam   = "redirect_uri"
	shutdownTimeout = 2 * time.Second
)

const donePage = `<!doctype html>
<html><head><meta charset="utf-8"><title>OSC</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em">
<h2>Citizen identity connected</h2>
<p>You can close this tab.</p>
</body></html>
`

// Flow runs at most one sign-in session at a time.
type Flow struct {
	cfg     Config
	logger  *zap.Logger
	results chan string

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// NewFlow creates a sign-in flow.
func NewFlow(cfg Config, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Flow{
		cfg:     cfg,
		logger:  logger.Named("auth"),
		results: make(chan string, 1),
	}
}

// Results delivers each linked identity.
func (f *Flow) Results() <-chan string {
	return f.results
}

// Start begins a session and returns the URL the browser should open: the
// login page with the loopback callback as redirect target. A session that
// is still open is cancelled first.
func (f *Flow) Start(ctx context.Context, loginURL string) (string, error) {
	login, err := url.Parse(loginURL)
	if err != nil {
		return "", fmt.Errorf("parse login url: %w", err)
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	origin := &url.URL{Scheme: "http", Host: listener.Addr().String()}
	callback := *origin
	callback.Path = f.cfg.CallbackPath

	q := login.Query()
	q.Set(redirectParam, callback.String())
	login.RawQuery = q.Encode()

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	sessionCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	f.cancel = cancel
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	s := &session{
		flow:    f,
		matcher: NewMatcher(origin, f.cfg.CallbackPath, f.cfg.LooseMatch),
		cancel:  cancel,
		logger:  f.logger.With(zap.Uint64("session", seq)),
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("Callback listener failed", zap.Error(err))
		}
	}()
	go func() {
		<-sessionCtx.Done()
		if errors.Is(sessionCtx.Err(), context.DeadlineExceeded) {
			s.logger.Info("Sign-in timed out")
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Sign-in started", zap.String("callback", callback.String()))
	return login.String(), nil
}

// Cancel ends the open session, if any.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// deliver publishes identity, replacing one nobody picked up yet. It never
// blocks, even when another session delivers at the same time.
func (f *Flow) deliver(identity string) {
	for {
		select {
		case f.results <- identity:
			return
		default:
		}
		select {
		case <-f.results:
		default:
		}
	}
}

type session struct {
	flow    *Flow
	matcher Matcher
	cancel  context.CancelFunc
	logger  *zap.Logger

	once sync.Once
}

func (s *session) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	observed := &url.URL{
		Scheme:   "http",
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}

	if !s.matcher.Match(observed) {
		s.logger.Debug("Ignoring redirect", zap.String("url", observed.String()))
		http.NotFound(w, r)
		return
	}

	identity := ExtractIdentity(r, s.flow.cfg.IdentityCookie)
	if identity == "" {
		s.logger.Debug("Callback without identity, waiting for retry")
		http.Error(w, "Sign-in not complete. Please try again.", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(donePage))

	s.once.Do(func() {
		s.logger.Info("Sign-in completed")
		s.flow.deliver(identity)
		s.cancel()
	})
}

// ExtractIdentity reads the identity from the named cookie, falling back to
// the query parameter of the same name.
//
// Browsers do not send the login site's cookies to the loopback host, so a
// real sign-in delivers the identity as a query parameter on the redirect.
// The cookie is only present when the login page itself ran on the loopback
// origin.
func ExtractIdentity(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			if unescaped, err := url.QueryUnescape(v); err == nil {
				return unescaped
			}
			return v
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(name))
}
