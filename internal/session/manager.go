// Package session manages authenticated platform sessions: cookie
// persistence, freshness, and transparent re-login when a restored session
// turns out to be dead.
package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/browser"
	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/internal/resilience"
)

// ErrNoAccount is returned when a platform requires login but no account is
// configured. Callers must not fall back to unauthenticated fetches.
var ErrNoAccount = eris.New("session: no account configured")

// loginFlow describes one platform's login page and form selectors.
type loginFlow struct {
	LoginURL         string
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
	// LoggedInSelector appears only after a successful post-login redirect.
	LoggedInSelector string
}

// loginFlows holds the flows for platforms that gate content behind login.
var loginFlows = map[model.Platform]loginFlow{
	model.PlatformTableall: {
		LoginURL:         "https://www.tableall.com/login",
		EmailSelector:    `input[name="email"]`,
		PasswordSelector: `input[name="password"]`,
		SubmitSelector:   `button[type="submit"]`,
		LoggedInSelector: `a[href*="/mypage"]`,
	},
}

// loginPathMarkers are URL fragments that identify a login page. A
// navigation landing on one of these means the restored cookies are dead.
var loginPathMarkers = []string{"/login", "/signin", "/sign_in", "/sign-in", "/auth"}

// DetectLoginRedirect reports whether a landed URL is a login page.
func DetectLoginRedirect(landedURL string) bool {
	lower := strings.ToLower(landedURL)
	for _, marker := range loginPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// TabRunner is the browser dependency, satisfied by *browser.Pool.
type TabRunner interface {
	RunTab(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error
}

// Manager owns all platform sessions. Sessions are mutated only here;
// scrapers read them through Acquire.
type Manager struct {
	dir      string
	accounts map[model.Platform]model.Credential
	tabs     TabRunner
	now      func() time.Time

	// locks serializes use of each platform's account so two scrapes can't
	// race a re-login.
	mu    sync.Mutex
	locks map[model.Platform]*sync.Mutex
}

// NewManager creates a session manager persisting cookie blobs under dir.
func NewManager(dir string, accounts map[model.Platform]model.Credential, tabs TabRunner) *Manager {
	return &Manager{
		dir:      dir,
		accounts: accounts,
		tabs:     tabs,
		now:      time.Now,
		locks:    make(map[model.Platform]*sync.Mutex),
	}
}

// WithNow fixes the clock for testing.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) lock(p model.Platform) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[p]
	if !ok {
		l = &sync.Mutex{}
		m.locks[p] = l
	}
	return l
}

func (m *Manager) path(p model.Platform) string {
	return filepath.Join(m.dir, string(p)+".json")
}

// Acquire returns the session for a platform, restoring persisted cookies
// when fresh and logging in otherwise. Restored cookies are not verified
// eagerly; verification is deferred to the first real navigation
// (see Reauthenticate). The returned release func must be
// called, and is safe to call on every path.
func (m *Manager) Acquire(ctx context.Context, p model.Platform) (*model.Session, func(), error) {
	cred, ok := m.accounts[p]
	if !ok || cred.Email == "" {
		return nil, func() {}, resilience.NewConfigError(
			eris.Wrapf(ErrNoAccount, "platform %s", p))
	}

	l := m.lock(p)
	l.Lock()
	var once sync.Once
	release := func() { once.Do(l.Unlock) }

	sess := m.restore(p)
	sess.Credential = cred

	if sess.Fresh(m.now()) {
		zap.L().Debug("session: restored fresh cookies", zap.String("platform", string(p)))
		return sess, release, nil
	}

	if err := m.login(ctx, sess); err != nil {
		release()
		return nil, func() {}, err
	}
	return sess, release, nil
}

// Reauthenticate re-logs-in after a navigation hit a login redirect. The
// caller already holds the session via Acquire.
func (m *Manager) Reauthenticate(ctx context.Context, sess *model.Session) error {
	zap.L().Info("session: stale cookies detected, re-authenticating",
		zap.String("platform", string(sess.Platform)),
	)
	return m.login(ctx, sess)
}

// restore loads the persisted session, or a blank one.
func (m *Manager) restore(p model.Platform) *model.Session {
	sess := &model.Session{Platform: p}
	raw, err := os.ReadFile(m.path(p))
	if err != nil {
		return sess
	}
	if err := json.Unmarshal(raw, sess); err != nil {
		zap.L().Warn("session: corrupt session file, ignoring",
			zap.String("platform", string(p)),
			zap.Error(err),
		)
		return &model.Session{Platform: p}
	}
	sess.Platform = p
	return sess
}

// login drives the platform's login form in a browser tab and persists the
// resulting cookie set.
func (m *Manager) login(ctx context.Context, sess *model.Session) error {
	flow, ok := loginFlows[sess.Platform]
	if !ok {
		return eris.Errorf("session: platform %s has no login flow", sess.Platform)
	}
	if m.tabs == nil {
		return eris.New("session: no browser configured for login")
	}

	var cookies []browser.Cookie
	err := m.tabs.RunTab(ctx, time.Minute,
		chromedp.Navigate(flow.LoginURL),
		chromedp.WaitVisible(flow.EmailSelector, chromedp.ByQuery),
		chromedp.SendKeys(flow.EmailSelector, sess.Credential.Email, chromedp.ByQuery),
		chromedp.SendKeys(flow.PasswordSelector, sess.Credential.Password, chromedp.ByQuery),
		chromedp.Click(flow.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitReady(flow.LoggedInSelector, chromedp.ByQuery),
		browser.GetCookiesAction(&cookies),
	)
	if err != nil {
		sess.IsValid = false
		return eris.Wrapf(err, "session: login %s", sess.Platform)
	}

	blob, err := json.Marshal(cookies)
	if err != nil {
		return eris.Wrap(err, "session: marshal cookies")
	}
	sess.CookieBlob = blob
	sess.LastLoginAt = m.now()
	sess.IsValid = true

	if err := m.persist(sess); err != nil {
		return err
	}
	zap.L().Info("session: logged in",
		zap.String("platform", string(sess.Platform)),
		zap.Int("cookies", len(cookies)),
	)
	return nil
}

func (m *Manager) persist(sess *model.Session) error {
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return eris.Wrap(err, "session: marshal")
	}
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return eris.Wrap(err, "session: mkdir")
	}
	if err := os.WriteFile(m.path(sess.Platform), raw, 0o600); err != nil {
		return eris.Wrap(err, "session: write")
	}
	return nil
}

// Cookies decodes the session's cookie blob for the rendered fetch path.
func Cookies(sess *model.Session) []browser.Cookie {
	if len(sess.CookieBlob) == 0 {
		return nil
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal(sess.CookieBlob, &cookies); err != nil {
		return nil
	}
	return cookies
}

// Status summarizes every configured account for the sessions CLI.
func (m *Manager) Status() []StatusEntry {
	entries := make([]StatusEntry, 0, len(m.accounts))
	for p := range m.accounts {
		sess := m.restore(p)
		entries = append(entries, StatusEntry{
			Platform:    p,
			Configured:  true,
			Fresh:       sess.Fresh(m.now()),
			LastLoginAt: sess.LastLoginAt,
		})
	}
	return entries
}

// StatusEntry is one row of session status output.
type StatusEntry struct {
	Platform    model.Platform `json:"platform"`
	Configured  bool           `json:"configured"`
	Fresh       bool           `json:"fresh"`
	LastLoginAt time.Time      `json:"last_login_at"`
}
