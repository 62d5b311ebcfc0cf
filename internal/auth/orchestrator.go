package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m365go/m365go/internal/cache"
	"github.com/m365go/m365go/internal/store"
)

// ErrNotLoggedIn signals that no connected session exists. The command
// layer turns it into a "run login first" hint.
var ErrNotLoggedIn = errors.New("auth: not logged in")

// ErrSessionExpired signals that a cached token expired and silent renewal
// failed. Re-authentication is a separate explicit command; the orchestrator
// never falls back to an interactive flow on its own.
var ErrSessionExpired = errors.New("auth: login has expired, sign in again")

// Orchestrator owns the session state machine: restore on startup, token
// lookup and silent refresh per command, login and logout on request. Every
// state transition is persisted through the token store before the result
// is returned to the caller.
type Orchestrator struct {
	store   store.TokenStore
	session *Session
	flowCfg FlowConfig
	cache   *cache.DiskCache
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	flow TokenFlow

	// group collapses concurrent refreshes of the same resource into one
	// provider round-trip.
	group singleflight.Group
}

// New wires an orchestrator around an explicitly constructed session.
// diskCache may be nil; it only serves ancillary lookups (tenant root URL),
// never tokens.
func New(ts store.TokenStore, sess *Session, fc FlowConfig, diskCache *cache.DiskCache, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   ts,
		session: sess,
		flowCfg: fc,
		cache:   diskCache,
		logger:  logger,
		now:     time.Now,
	}
}

// RestoreAuth loads the persisted connection into the session. A missing
// token file is the normal first-run state, not an error: the session just
// stays logged out.
func (o *Orchestrator) RestoreAuth(ctx context.Context) error {
	serialized, err := o.store.Get(ctx)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Debug("no persisted connection, starting logged out")
		return nil
	}

	if err != nil {
		return fmt.Errorf("auth: restoring session: %w", err)
	}

	restored, err := ParseSession(serialized)
	if err != nil {
		return fmt.Errorf("auth: restoring session: %w", err)
	}

	o.mu.Lock()
	*o.session = *restored
	o.mu.Unlock()

	o.logger.Debug("session restored",
		slog.Bool("connected", restored.Connected),
		slog.String("authType", restored.AuthType.String()),
		slog.String("cloud", restored.CloudType.String()),
	)

	return nil
}

// EnsureAccessToken returns a usable access token for resource. A cached
// unexpired token is returned with no I/O. An expired or missing one is
// renewed silently via the session's provider flow and the updated session
// is persisted. Renewal failure surfaces ErrSessionExpired; it is never
// retried and never escalated to an interactive login.
func (o *Orchestrator) EnsureAccessToken(ctx context.Context, resource string) (string, error) {
	o.mu.Lock()

	if !o.session.Connected {
		o.mu.Unlock()
		return "", ErrNotLoggedIn
	}

	if tok, ok := o.session.Token(resource); ok && !o.session.Expired(resource, o.now()) {
		o.mu.Unlock()
		return tok.AccessToken, nil
	}

	o.mu.Unlock()

	token, err, _ := o.group.Do(resource, func() (any, error) {
		return o.refreshResource(ctx, resource)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

// refreshResource renews the token for one resource and persists the
// session. Runs inside the singleflight group. A failure leaves the session
// untouched: tokens for other resources are only ever replaced after their
// own successful renewal.
func (o *Orchestrator) refreshResource(ctx context.Context, resource string) (string, error) {
	// A concurrent caller may have refreshed while this one waited on the
	// singleflight slot.
	o.mu.Lock()

	if tok, ok := o.session.Token(resource); ok && !o.session.Expired(resource, o.now()) {
		o.mu.Unlock()
		return tok.AccessToken, nil
	}

	refreshToken := o.session.RefreshToken
	o.mu.Unlock()

	flow, err := o.ensureFlow()
	if err != nil {
		return "", err
	}

	o.logger.Info("cached token missing or expired, renewing silently",
		slog.String("resource", resource),
		slog.String("flow", flow.Name()),
	)

	grant, err := flow.Refresh(ctx, resource, refreshToken)
	if err != nil {
		o.logger.Warn("silent renewal failed",
			slog.String("resource", resource),
			slog.String("error", err.Error()),
		)

		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	o.mu.Lock()
	o.session.SetToken(resource, grant.AccessToken, grant.ExpiresOn)

	if grant.RefreshToken != "" {
		o.session.RefreshToken = grant.RefreshToken
	}

	serialized, err := o.session.Marshal()
	o.mu.Unlock()

	if err != nil {
		return "", err
	}

	if err := o.store.Set(ctx, serialized); err != nil {
		return "", err
	}

	return grant.AccessToken, nil
}

// Login runs the session's provider flow interactively and, on success,
// marks the session connected with a token for the cloud's Graph resource
// and persists it. On failure the session is left exactly as it was.
func (o *Orchestrator) Login(ctx context.Context) error {
	flow, err := o.ensureFlow()
	if err != nil {
		return err
	}

	resource := o.GraphResource()

	o.logger.Info("logging in",
		slog.String("flow", flow.Name()),
		slog.String("resource", resource),
	)

	grant, err := flow.Acquire(ctx, resource)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.session.Connected = true
	o.session.SetToken(resource, grant.AccessToken, grant.ExpiresOn)
	o.session.RefreshToken = grant.RefreshToken

	serialized, err := o.session.Marshal()
	o.mu.Unlock()

	if err != nil {
		return err
	}

	return o.store.Set(ctx, serialized)
}

// Logout clears the session and removes the persisted connection. Safe to
// call when never logged in.
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.mu.Lock()
	o.session.Logout()
	o.flow = nil
	o.mu.Unlock()

	o.logger.Info("logged out")

	return o.store.Remove(ctx)
}

// Snapshot returns a read-only copy of the session for status display.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.session.Clone()
}

// GraphResource returns the Graph base URL for the session's cloud.
func (o *Orchestrator) GraphResource() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.session.CloudType.GraphBase()
}

// SpoURL returns the tenant root SharePoint URL, resolving it lazily.
// Resolution order: session, disk cache, then the resolve callback (a Graph
// round-trip) whose result is persisted and cached for later invocations.
func (o *Orchestrator) SpoURL(ctx context.Context, resolve func(ctx context.Context, accessToken string) (string, error)) (string, error) {
	o.mu.Lock()

	if !o.session.Connected {
		o.mu.Unlock()
		return "", ErrNotLoggedIn
	}

	if o.session.SpoURL != "" {
		spoURL := o.session.SpoURL
		o.mu.Unlock()

		return spoURL, nil
	}

	cacheKey := "spoUrl|" + o.session.Key()
	o.mu.Unlock()

	if o.cache != nil {
		if cached, ok := o.cache.Get(cacheKey); ok {
			o.logger.Debug("tenant root URL served from disk cache")
			return cached, nil
		}
	}

	token, err := o.EnsureAccessToken(ctx, o.GraphResource())
	if err != nil {
		return "", err
	}

	spoURL, err := resolve(ctx, token)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.session.SpoURL = spoURL
	serialized, err := o.session.Marshal()
	o.mu.Unlock()

	if err != nil {
		return "", err
	}

	if err := o.store.Set(ctx, serialized); err != nil {
		return "", err
	}

	if o.cache != nil {
		o.cache.Set(cacheKey, spoURL)
	}

	return spoURL, nil
}

// ensureFlow selects the provider flow matching the session's credential
// type. Selection happens once; the orchestrator never branches on the
// auth type tag elsewhere.
func (o *Orchestrator) ensureFlow() (TokenFlow, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.flow != nil {
		return o.flow, nil
	}

	flow, err := NewFlow(o.session, o.flowCfg, o.logger)
	if err != nil {
		return nil, err
	}

	o.flow = flow

	return flow, nil
}
