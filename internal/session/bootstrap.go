// Package session reconciles the encrypted credential cache against the live
// identity-provider session and publishes immutable snapshots consumed by the
// route gates. The bootstrapper is the single owner of the session state;
// gates only ever read the latest snapshot.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradeboard.org/internal/credstore"
	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/obs"
	"tradeboard.org/internal/profile"
)

// Snapshot is the immutable session state at a point in time. Loading is true
// only while the initial resolution is in flight.
type Snapshot struct {
	Identity *identity.Identity
	Profile  *profile.Profile
	Loading  bool
}

// Authenticated reports whether the snapshot carries a resolved identity.
func (s Snapshot) Authenticated() bool {
	return !s.Loading && s.Identity != nil
}

// ProfileSource loads the application profile for an identity.
type ProfileSource interface {
	ProfileByUserID(ctx context.Context, userID string) (profile.Profile, error)
}

// CredentialCache is the persisted last-known-identity store. The cache is
// advisory only; every reconciliation revalidates against the provider.
type CredentialCache interface {
	Set(user *identity.Identity, sess *identity.Session, prof *profile.Profile) error
	Get() *credstore.StoredAuthData
	Clear()
}

// Bootstrapper resolves the live session on start and re-resolves on every
// provider auth event. All reconciliations run on a single goroutine, so no
// two ever overlap for one bootstrapper.
type Bootstrapper struct {
	provider identity.Provider
	profiles ProfileSource
	cache    CredentialCache
	bus      *identity.Bus
	now      func() time.Time

	mu      sync.RWMutex
	snap    Snapshot
	session *identity.Session

	subsMu   sync.RWMutex
	subs     map[int]chan Snapshot
	nextSub  int
	resolved chan struct{}
	once     sync.Once
}

// New constructs a bootstrapper in the LOADING state.
func New(provider identity.Provider, profiles ProfileSource, cache CredentialCache, bus *identity.Bus) *Bootstrapper {
	return &Bootstrapper{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		bus:      bus,
		now:      time.Now,
		snap:     Snapshot{Loading: true},
		subs:     make(map[int]chan Snapshot),
		resolved: make(chan struct{}),
	}
}

// Current returns the latest snapshot.
func (b *Bootstrapper) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Resolved is closed once the initial resolution finishes.
func (b *Bootstrapper) Resolved() <-chan struct{} {
	return b.resolved
}

// Subscribe delivers every published snapshot until the context ends.
func (b *Bootstrapper) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 16)

	b.subsMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		b.subsMu.Lock()
		delete(b.subs, id)
		close(ch)
		b.subsMu.Unlock()
	}()

	return ch
}

// Run performs the initial resolution and then reconciles on every provider
// auth event until the context is cancelled. Cancelling releases the event
// subscription; results of an in-flight resolution are discarded.
func (b *Bootstrapper) Run(ctx context.Context) {
	events := b.bus.Subscribe(ctx)

	b.reconcile(ctx, b.cachedSession())
	b.markResolved()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			b.handleEvent(ctx, evt)
		}
	}
}

func (b *Bootstrapper) handleEvent(ctx context.Context, evt identity.Event) {
	switch evt.Kind {
	case identity.EventSignedOut:
		b.reconcile(ctx, nil)
	case identity.EventSignedIn, identity.EventTokenRefreshed:
		b.reconcile(ctx, evt.Session)
	default:
		obs.LogError("session: unknown auth event ignored", map[string]any{"kind": string(evt.Kind)})
	}
}

// reconcile establishes the live session from the candidate (event payload or
// cache), writes the result through the credential cache and publishes a
// snapshot. A nil candidate or a dead session resolves to signed-out.
func (b *Bootstrapper) reconcile(ctx context.Context, candidate *identity.Session) {
	sess, user, ok := b.resolveSession(ctx, candidate)
	if ctx.Err() != nil {
		// Torn down mid-resolution; never apply a late result.
		return
	}
	if !ok {
		b.cache.Clear()
		b.publish(Snapshot{}, nil)
		return
	}

	prof := b.resolveProfile(ctx, user)
	if ctx.Err() != nil {
		return
	}

	if err := b.cache.Set(&user, sess, prof); err != nil {
		obs.LogError("session: cache write-through failed", map[string]any{"error": err.Error()})
	}
	b.publish(Snapshot{Identity: &user, Profile: prof}, sess)
}

func (b *Bootstrapper) resolveSession(ctx context.Context, candidate *identity.Session) (*identity.Session, identity.Identity, bool) {
	if candidate == nil {
		return nil, identity.Identity{}, false
	}
	sess := *candidate

	if sess.Expired(b.now()) {
		refreshed, err := b.provider.RefreshSession(ctx, sess.RefreshToken)
		if err != nil {
			return nil, identity.Identity{}, false
		}
		sess = refreshed
	}

	user, err := b.provider.UserFromToken(ctx, sess.AccessToken)
	if err == nil {
		if user.Email == "" {
			user.Email = sess.User.Email
		}
		return &sess, user, true
	}
	if !errors.Is(err, identity.ErrInvalidToken) {
		obs.LogError("session: token verification failed", map[string]any{"error": err.Error()})
		return nil, identity.Identity{}, false
	}

	// Invalid access token with a refresh token left: one refresh attempt.
	refreshed, rerr := b.provider.RefreshSession(ctx, sess.RefreshToken)
	if rerr != nil {
		return nil, identity.Identity{}, false
	}
	user, err = b.provider.UserFromToken(ctx, refreshed.AccessToken)
	if err != nil {
		return nil, identity.Identity{}, false
	}
	if user.Email == "" {
		user.Email = refreshed.User.Email
	}
	return &refreshed, user, true
}

// resolveProfile fetches the profile for the verified identity. On transient
// fetch failure a matching cached profile is reused; a missing profile
// (onboarding not finished) resolves to nil.
func (b *Bootstrapper) resolveProfile(ctx context.Context, user identity.Identity) *profile.Profile {
	prof, err := b.profiles.ProfileByUserID(ctx, user.ID)
	if err == nil {
		return &prof
	}
	if errors.Is(err, profile.ErrNotFound) {
		return nil
	}
	obs.LogError("session: profile fetch failed", map[string]any{"error": err.Error()})
	if cached := b.cache.Get(); cached != nil && cached.Profile != nil && cached.Profile.UserID == user.ID {
		cp := *cached.Profile
		return &cp
	}
	return nil
}

func (b *Bootstrapper) cachedSession() *identity.Session {
	data := b.cache.Get()
	if data == nil || data.Session == nil {
		return nil
	}
	sess := *data.Session
	return &sess
}

func (b *Bootstrapper) markResolved() {
	b.once.Do(func() { close(b.resolved) })
}

func (b *Bootstrapper) publish(snap Snapshot, sess *identity.Session) {
	b.mu.Lock()
	b.snap = snap
	b.session = sess
	b.mu.Unlock()

	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Drop for slow subscribers; they read Current() on demand.
		}
	}
}
