// Package session owns "who is signed in" for the portal.
//
// The Controller is the single writer of the Session value: it performs the
// credential exchange, keeps the access token fresh ahead of expiry,
// persists the session across restarts and converges with other portal
// processes through a SignalChannel. Everything else reads snapshots.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/store"
	"github.com/sendhisword/portal/pkg/authapi"
	"github.com/sendhisword/portal/pkg/idx"
	"github.com/sendhisword/portal/pkg/jwtx"
)

const (
	// FallbackRefreshInterval is used when a token carries no usable expiry.
	// Comfortably shorter than the shortest access-token lifetime we see in
	// the wild (15 minutes to an hour).
	FallbackRefreshInterval = 14 * time.Minute

	// refreshFraction schedules the proactive refresh at this share of the
	// token's remaining lifetime, recomputed after every successful refresh.
	refreshFraction = 0.8

	// minRefreshDelay keeps a nearly-expired token from arming a hot loop.
	minRefreshDelay = 10 * time.Second

	// backgroundOpTimeout bounds operations the controller starts on its
	// own (timer refresh, signal-driven resync).
	backgroundOpTimeout = 30 * time.Second
)

// State is a read-only snapshot of the controller. Session is nil when
// signed out; Err carries the last human-readable failure of an explicit
// operation and is cleared when the next one starts.
type State struct {
	Session *domain.Session
	Loading bool
	Err     string
}

// IsAuthenticated reports whether the snapshot holds a session.
func (s State) IsAuthenticated() bool { return s.Session != nil }

// TokenPair is the result of an explicit token refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Config wires a Controller. API and Store are required; everything else
// defaults to a headless, log-only setup.
type Config struct {
	API   *authapi.Client
	Store store.Store

	// Channel connects this controller to its peers. Optional.
	Channel SignalChannel

	Navigator Navigator
	Notifier  Notifier
	Logger    *slog.Logger

	// FallbackInterval overrides FallbackRefreshInterval, mainly for tests.
	FallbackInterval time.Duration

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Controller is the session/auth lifecycle controller.
type Controller struct {
	api      *authapi.Client
	store    store.Store
	channel  SignalChannel
	nav      Navigator
	notify   Notifier
	logger   *slog.Logger
	clock    func() time.Time
	fallback time.Duration

	// opMu serializes mutating operations so concurrent sign-in/refresh
	// can't interleave into a last-write-wins race. Callers queue; each
	// operation re-reads the session after acquiring the lock.
	opMu sync.Mutex

	mu      sync.RWMutex
	sess    *domain.Session
	loading bool
	errMsg  string
	subs    map[int]chan State
	nextSub int
	timer   *time.Timer
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Controller. The controller starts in the loading state and
// stays there until Initialize completes, so guards render "pending" rather
// than bouncing an actually signed-in user to the login page.
func New(cfg Config) *Controller {
	c := &Controller{
		api:      cfg.API,
		store:    cfg.Store,
		channel:  cfg.Channel,
		nav:      cfg.Navigator,
		notify:   cfg.Notifier,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		fallback: cfg.FallbackInterval,
		loading:  true,
		subs:     make(map[int]chan State),
		stop:     make(chan struct{}),
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.nav == nil {
		c.nav = LogNavigator{Logger: c.logger}
	}
	if c.notify == nil {
		c.notify = LogNotifier{Logger: c.logger}
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.fallback <= 0 {
		c.fallback = FallbackRefreshInterval
	}

	return c
}

// Start begins observing the signal channel. Safe to call when no channel
// is configured.
func (c *Controller) Start() {
	if c.channel == nil {
		return
	}
	c.wg.Add(1)
	go c.watch()
}

// Close tears the controller down: the refresh timer is disarmed and the
// signal watcher stopped. In-flight operations finish normally.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
	return nil
}

// ============================================================================
// Snapshots and queries
// ============================================================================

// Snapshot returns the current state. The contained Session is a copy;
// mutating it has no effect on the controller.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := State{Loading: c.loading, Err: c.errMsg}
	if c.sess != nil {
		sess := *c.sess
		state.Session = &sess
	}
	return state
}

// IsAuthenticated reports whether a session is present.
func (c *Controller) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess != nil
}

// HasRole reports whether the current session's roles intersect want.
// Always false when signed out. Never has side effects.
func (c *Controller) HasRole(want ...domain.Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.HasRole(want...)
}

// Subscribe returns a channel receiving state snapshots on every change,
// plus a cancel function. Slow subscribers miss intermediate snapshots but
// always receive a later one.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 8)
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

// ============================================================================
// Operations
// ============================================================================

// Initialize restores a persisted session, if any, and brings the profile
// up to date. Failures degrade to "signed out"; nothing is returned to the
// caller and no user-facing notification fires.
func (c *Controller) Initialize(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.beginOp()
	defer c.endOp()

	c.resolve(ctx)
}

// RefreshSession re-reads the persisted session and re-fetches the profile,
// treating any failure as "not usably authenticated". Never returns an
// error; background callers have nowhere to put one.
func (c *Controller) RefreshSession(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.beginOp()
	defer c.endOp()

	c.resolve(ctx)
}

// SignIn exchanges credentials for a session. A provider rejection is
// recorded, notified and returned so the calling form can keep its own
// submitting state accurate. A failure never touches a pre-existing session.
func (c *Controller) SignIn(ctx context.Context, email, password string, rememberMe bool) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.beginOp()
	defer c.endOp()

	tokens, err := c.api.Login(ctx, email, password, rememberMe)
	if err != nil {
		msg := authapi.Message(err)
		c.setError(msg)
		c.notify.Error(msg)
		return err
	}

	sess := domain.Session{}
	applyTokens(&sess, tokens, c.clock())

	profile, err := c.fetchProfile(ctx, &sess)
	if err != nil {
		msg := authapi.Message(err)
		c.logger.Error("profile fetch after sign-in failed", "error", err)
		c.setError(msg)
		c.notify.Error(msg)
		return err
	}
	sess.Profile = *profile

	c.replaceSession(ctx, &sess, true)
	c.notify.Success("Successfully signed in!")
	return nil
}

// SignOut invalidates the remote session and clears the local one. The
// local clear is unconditional: the user must never appear signed in after
// asking to sign out, even when the network call fails. Idempotent.
func (c *Controller) SignOut(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.beginOp()
	defer c.endOp()

	c.signOutLocked(ctx, true)
}

// RefreshToken exchanges the current refresh token for a new access token.
// Returns (nil, nil) when there is nothing to refresh. An exchange failure
// is unrecoverable: the user is signed out and the error returned; the
// periodic timer ignores it.
func (c *Controller) RefreshToken(ctx context.Context) (*TokenPair, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	// Re-read under the lock: a queued refresh must use whatever session
	// the previous operation left behind, not the one it saw on entry.
	c.mu.RLock()
	cur := c.sess
	c.mu.RUnlock()

	if cur == nil || cur.RefreshToken == "" {
		return nil, nil
	}

	tokens, err := c.api.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		c.logger.Error("token refresh failed, signing out", "error", err)
		c.signOutLocked(ctx, false)
		return nil, err
	}

	sess := *cur
	applyTokens(&sess, tokens, c.clock())
	c.replaceSession(ctx, &sess, true)

	return &TokenPair{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	}, nil
}

// ============================================================================
// Internals
// ============================================================================

// resolve loads the persisted session, refreshes stale tokens and fetches
// the profile. Any failure past "no session persisted" clears local state.
func (c *Controller) resolve(ctx context.Context) {
	rec, err := c.store.Current(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Error("session restore failed", "error", err)
		}
		c.replaceSession(ctx, nil, false)
		return
	}

	sess := rec.Session
	rotated := false

	// A restored access token may be past its expiry; exchange it before
	// asking the backend anything.
	if sess.RefreshToken != "" && sess.Expired(c.clock()) {
		tokens, err := c.api.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			c.logger.Error("restored session refresh failed", "error", err)
			c.replaceSession(ctx, nil, true)
			return
		}
		applyTokens(&sess, tokens, c.clock())
		rotated = true
	}

	before := sess.AccessToken
	profile, err := c.fetchProfile(ctx, &sess)
	if err != nil {
		c.logger.Error("failed to fetch user profile", "error", err)
		c.replaceSession(ctx, nil, true)
		return
	}
	sess.Profile = *profile
	rotated = rotated || sess.AccessToken != before

	// Persist and announce only when the tokens actually rotated. A plain
	// re-read must not publish, or two converging peers would notify each
	// other forever.
	c.replaceSession(ctx, &sess, rotated)
}

// fetchProfile loads /auth/me with the session's access token. A 401 with a
// refresh token in hand gets one token exchange and a second attempt;
// transient failures are already retried inside the HTTP client.
func (c *Controller) fetchProfile(ctx context.Context, sess *domain.Session) (*domain.Profile, error) {
	profile, err := c.api.Me(ctx, sess.AccessToken)
	if err == nil {
		return profile, nil
	}

	if !authapi.IsAuthFailure(err) || sess.RefreshToken == "" {
		return nil, err
	}

	tokens, refreshErr := c.api.Refresh(ctx, sess.RefreshToken)
	if refreshErr != nil {
		return nil, refreshErr
	}
	applyTokens(sess, tokens, c.clock())

	return c.api.Me(ctx, sess.AccessToken)
}

// signOutLocked clears local state and best-effort invalidates the remote
// session. Caller must hold opMu. notifyUser controls the transient
// notifications; background sign-outs stay quiet per the error policy.
func (c *Controller) signOutLocked(ctx context.Context, notifyUser bool) {
	c.mu.RLock()
	cur := c.sess
	c.mu.RUnlock()

	var remoteErr error
	if cur != nil && cur.RefreshToken != "" {
		remoteErr = c.api.Logout(ctx, cur.AccessToken, cur.RefreshToken)
	}

	// Local clear happens regardless of the remote outcome
	c.replaceSession(ctx, nil, true)

	if remoteErr != nil {
		c.logger.Error("remote sign-out failed", "error", remoteErr)
		if notifyUser {
			msg := "Failed to sign out. Please try again."
			c.setError(msg)
			c.notify.Error(msg)
		}
	} else if notifyUser {
		c.notify.Success("Successfully signed out")
	}

	c.nav.NavigateTo(SignInLocation)
}

// replaceSession swaps the held session, optionally persists the change,
// announces it to peers, re-arms the refresh timer and notifies
// subscribers.
func (c *Controller) replaceSession(ctx context.Context, sess *domain.Session, persist bool) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	if persist {
		if sess == nil {
			if err := c.store.Clear(ctx); err != nil {
				c.logger.Error("failed to clear persisted session", "error", err)
			}
		} else {
			rec := &store.Record{ID: idx.New(), Session: *sess}
			if err := c.store.Put(ctx, rec); err != nil {
				c.logger.Error("failed to persist session", "error", err)
			}
		}

		if c.channel != nil {
			if err := c.channel.Publish(ctx); err != nil {
				c.logger.Warn("failed to publish session change", "error", err)
			}
		}
	}

	c.rearmRefresh()
	c.broadcast()
}

// rearmRefresh schedules the next proactive token refresh: at 80% of the
// token's remaining lifetime when an expiry is known, otherwise at the
// fixed fallback interval. Disarmed whenever the session is absent.
func (c *Controller) rearmRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed || c.sess == nil || c.sess.RefreshToken == "" {
		return
	}

	delay := c.fallback

	expiry := c.sess.ExpiresAt
	if expiry.IsZero() {
		expiry = jwtx.Expiry(c.sess.AccessToken)
	}
	if !expiry.IsZero() {
		remaining := expiry.Sub(c.clock())
		if remaining > 0 {
			delay = time.Duration(float64(remaining) * refreshFraction)
		} else {
			delay = minRefreshDelay
		}
		if delay < minRefreshDelay {
			delay = minRefreshDelay
		}
	}

	c.timer = time.AfterFunc(delay, c.backgroundRefresh)
}

// backgroundRefresh is the timer callback. Errors are resolved internally
// by RefreshToken (full sign-out); nothing escapes here.
func (c *Controller) backgroundRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()

	_, _ = c.RefreshToken(ctx)
}

// watch reacts to peer session changes by re-deriving the local session.
func (c *Controller) watch() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		case _, ok := <-c.channel.Notifications():
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
			c.RefreshSession(ctx)
			cancel()
		}
	}
}

func (c *Controller) beginOp() {
	c.mu.Lock()
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()
	c.broadcast()
}

func (c *Controller) endOp() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	c.broadcast()
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	c.broadcast()
}

func (c *Controller) broadcast() {
	snap := c.Snapshot()

	c.mu.RLock()
	subs := make([]chan State, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is behind; it will get the next snapshot
		}
	}
}

// applyTokens merges a token response into sess. The provider may not
// rotate the refresh token; keep the old one in that case.
func applyTokens(sess *domain.Session, tokens *authapi.TokenResponse, now time.Time) {
	sess.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		sess.RefreshToken = tokens.RefreshToken
	}

	switch {
	case tokens.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
	default:
		sess.ExpiresAt = jwtx.Expiry(tokens.AccessToken)
	}
}
