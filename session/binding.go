package session

import (
	"context"
	"io"
	"sync"

	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/logging"
	"github.com/MrEthical07/wanderauth/profile"
)

// SyntheticAdminID is the account id of the identity adopted from a
// persisted admin session.
const SyntheticAdminID = "admin"

// AuthSource is the part of the identity provider the binding consumes.
type AuthSource interface {
	SubscribeAuthState(fn idp.AuthStateFunc) (unsubscribe func())
}

// Profiles opens live profile subscriptions.
type Profiles interface {
	Subscribe(ctx context.Context, accountID string, fn func(profile.Update)) (io.Closer, error)
}

// State is a consistent snapshot of the binding.
type State struct {
	Account   *idp.Account
	Profile   *profile.Record
	Synthetic bool
}

// Resolution is reported once per auth-state change, after the profile has
// loaded or failed to load. Account is nil for a signed-out state.
type Resolution struct {
	Account *idp.Account
	Profile *profile.Record
	Err     error
}

// Options configures a Binding.
type Options struct {
	Logger logging.Logger
	// OnChange is called after every applied state change.
	OnChange func(State)
}

// Binding keeps the current account and its profile in sync with the
// provider. It is safe for concurrent use.
type Binding struct {
	auth     AuthSource
	profiles Profiles
	log      logging.Logger
	onChange func(State)

	mu         sync.Mutex
	epoch      uint64
	gen        uint64
	resolved   uint64
	running    bool
	account    *idp.Account
	profile    *profile.Record
	synthetic  bool
	authUnsub  func()
	profileSub io.Closer
	hooks      []func(Resolution)
}

func NewBinding(auth AuthSource, profiles Profiles, opts Options) *Binding {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Binding{
		auth:     auth,
		profiles: profiles,
		log:      log.With("component", "session"),
		onChange: opts.OnChange,
	}
}

// OnResolved registers fn to run once per auth-state resolution. Hooks run
// on the delivering goroutine and must not call Stop.
func (b *Binding) OnResolved(fn func(Resolution)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, fn)
}

// Start subscribes to the provider's auth state. Calling Start on a running
// binding is a no-op.
func (b *Binding) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.epoch++
	epoch := b.epoch
	b.mu.Unlock()

	unsub := b.auth.SubscribeAuthState(func(s *idp.Session) {
		b.handleAuth(ctx, epoch, s)
	})

	b.mu.Lock()
	if b.epoch != epoch {
		// Stopped while subscribing.
		b.mu.Unlock()
		unsub()
		return
	}
	b.authUnsub = unsub
	b.mu.Unlock()
}

// Stop tears down the auth-state and profile subscriptions. No callback
// mutates state after Stop returns.
func (b *Binding) Stop() {
	b.mu.Lock()
	b.epoch++
	b.gen++
	b.running = false
	unsub := b.authUnsub
	b.authUnsub = nil
	sub := b.profileSub
	b.profileSub = nil
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	b.closeSub(sub)
}

// AdoptSyntheticAdmin installs an admin identity without consulting the
// provider, as when a persisted admin session is found at bootstrap.
func (b *Binding) AdoptSyntheticAdmin(email string) {
	acct := &idp.Account{ID: SyntheticAdminID, Email: email, DisplayName: "Admin"}
	rec := &profile.Record{Email: email, Name: "Admin", Role: profile.RoleAdmin}

	b.mu.Lock()
	b.gen++
	gen := b.gen
	sub := b.profileSub
	b.profileSub = nil
	b.account, b.profile, b.synthetic = acct, rec, true
	b.resolved = gen
	state := b.snapshotLocked()
	hooks := b.hooksLocked()
	b.mu.Unlock()

	b.closeSub(sub)
	b.log.Info(context.Background(), "adopted persisted admin session", "email", email)
	b.emit(state, hooks, Resolution{Account: state.Account, Profile: state.Profile})
}

// Clear drops the current identity and its profile subscription without
// touching the auth-state subscription.
func (b *Binding) Clear() {
	b.mu.Lock()
	b.gen++
	sub := b.profileSub
	b.profileSub = nil
	b.account, b.profile, b.synthetic = nil, nil, false
	state := b.snapshotLocked()
	b.mu.Unlock()

	b.closeSub(sub)
	if b.onChange != nil {
		b.onChange(state)
	}
}

// Snapshot returns the current state.
func (b *Binding) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// CurrentAccount returns the signed-in account, if any.
func (b *Binding) CurrentAccount() (idp.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.account == nil {
		return idp.Account{}, false
	}
	return *b.account, true
}

// Profile returns the profile of the signed-in account, if loaded.
func (b *Binding) Profile() (profile.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profile == nil {
		return profile.Record{}, false
	}
	return *b.profile, true
}

func (b *Binding) handleAuth(ctx context.Context, epoch uint64, s *idp.Session) {
	b.mu.Lock()
	if b.epoch != epoch {
		b.mu.Unlock()
		return
	}
	if b.synthetic {
		// A persisted admin session takes precedence over provider state.
		b.mu.Unlock()
		return
	}

	b.gen++
	gen := b.gen
	old := b.profileSub
	b.profileSub = nil

	if s == nil {
		b.account, b.profile = nil, nil
		b.resolved = gen
		state := b.snapshotLocked()
		hooks := b.hooksLocked()
		b.mu.Unlock()

		b.closeSub(old)
		b.log.Debug(ctx, "auth state resolved", "signed_in", false)
		b.emit(state, hooks, Resolution{})
		return
	}

	acct := s.Account
	b.account = &acct
	b.profile = nil
	b.mu.Unlock()

	b.closeSub(old)

	sub, err := b.profiles.Subscribe(ctx, acct.ID, func(u profile.Update) {
		b.handleProfile(gen, acct, u)
	})
	if err != nil {
		b.log.Warn(ctx, "profile subscription failed", "account_id", acct.ID, "error", err)
		b.failResolution(gen, acct, err)
		return
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		b.closeSub(sub)
		return
	}
	b.profileSub = sub
	b.mu.Unlock()
}

func (b *Binding) handleProfile(gen uint64, acct idp.Account, u profile.Update) {
	if u.Err != nil {
		b.log.Warn(context.Background(), "profile update failed", "account_id", acct.ID, "error", u.Err)
		b.failResolution(gen, acct, u.Err)
		return
	}

	rec := u.Record
	if !u.Exists {
		rec = profile.Synthesize(acct.Email, acct.DisplayName)
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.profile = &rec
	first := b.resolved != gen
	b.resolved = gen
	state := b.snapshotLocked()
	var hooks []func(Resolution)
	if first {
		hooks = b.hooksLocked()
	}
	b.mu.Unlock()

	b.emit(state, hooks, Resolution{Account: state.Account, Profile: state.Profile})
}

// failResolution resolves the auth state without a profile so readiness
// never waits on a failed profile load.
func (b *Binding) failResolution(gen uint64, acct idp.Account, err error) {
	b.mu.Lock()
	if b.gen != gen || b.resolved == gen {
		b.mu.Unlock()
		return
	}
	b.resolved = gen
	hooks := b.hooksLocked()
	b.mu.Unlock()

	for _, fn := range hooks {
		fn(Resolution{Account: &acct, Err: err})
	}
}

func (b *Binding) emit(state State, hooks []func(Resolution), res Resolution) {
	if b.onChange != nil {
		b.onChange(state)
	}
	for _, fn := range hooks {
		fn(res)
	}
}

func (b *Binding) snapshotLocked() State {
	st := State{Synthetic: b.synthetic}
	if b.account != nil {
		acct := *b.account
		st.Account = &acct
	}
	if b.profile != nil {
		rec := *b.profile
		st.Profile = &rec
	}
	return st
}

func (b *Binding) hooksLocked() []func(Resolution) {
	if len(b.hooks) == 0 {
		return nil
	}
	return append(([]func(Resolution))(nil), b.hooks...)
}

func (b *Binding) closeSub(sub io.Closer) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		b.log.Debug(context.Background(), "profile subscription close failed", "error", err)
	}
}
