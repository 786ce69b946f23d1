package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/wanderauth/internal/logging"
	"github.com/MrEthical07/wanderauth/localstate"
	"github.com/MrEthical07/wanderauth/session"
)

// AuthBinding is the session binding as seen by the coordinator.
type AuthBinding interface {
	Start(ctx context.Context)
	Stop()
	Clear()
	AdoptSyntheticAdmin(email string)
	OnResolved(fn func(session.Resolution))
}

// Readiness describes one bootstrap pass.
type Readiness struct {
	Pass       uint64
	AuthReady  bool
	ImageReady bool
	// Admin is true when a persisted admin session short-circuited auth.
	Admin     bool
	StartedAt time.Time
	Elapsed   time.Duration
	// ImageErr is the swallowed preload failure, if any.
	ImageErr error
}

// Ready reports whether both signals are in.
func (r Readiness) Ready() bool {
	return r.AuthReady && r.ImageReady
}

// Options configures a Coordinator.
type Options struct {
	Logger         logging.Logger
	PreloadTimeout time.Duration
	Clock          func() time.Time
}

type pass struct {
	id         uint64
	started    time.Time
	admin      bool
	authReady  atomic.Bool
	imageReady atomic.Bool
	once       sync.Once
	done       chan struct{}
	cancel     context.CancelFunc
	// ctx is the Start context, kept so Resume can attach the binding.
	ctx context.Context

	mu       sync.Mutex
	elapsed  time.Duration
	imageErr error
}

// Coordinator runs bootstrap passes. It is safe for concurrent use.
type Coordinator struct {
	binding   AuthBinding
	local     localstate.Store
	slides    SlideSource
	preloader Preloader
	log       logging.Logger
	timeout   time.Duration
	clock     func() time.Time

	mu      sync.Mutex
	current *pass
	passes  uint64
	hooks   []func(Readiness)
}

func NewCoordinator(binding AuthBinding, local localstate.Store, slides SlideSource, preloader Preloader, opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	if opts.PreloadTimeout <= 0 {
		opts.PreloadTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	c := &Coordinator{
		binding:   binding,
		local:     local,
		slides:    slides,
		preloader: preloader,
		log:       log.With("component", "bootstrap"),
		timeout:   opts.PreloadTimeout,
		clock:     opts.Clock,
	}
	binding.OnResolved(func(session.Resolution) {
		c.MarkAuthReady()
	})
	return c
}

// OnReady registers fn to run once per pass when it becomes ready. Hooks
// run on their own goroutine.
func (c *Coordinator) OnReady(fn func(Readiness)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Start begins a bootstrap pass. It returns without waiting for readiness;
// use Done or OnReady. Start on a pass that is already running is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return
	}
	c.passes++
	preloadCtx, cancel := context.WithCancel(ctx)
	p := &pass{
		id:      c.passes,
		started: c.clock(),
		done:    make(chan struct{}),
		cancel:  cancel,
		ctx:     ctx,
	}
	c.current = p
	c.mu.Unlock()

	go c.preloadHero(preloadCtx, p)

	persisted, err := c.local.LoadPersistedSession()
	if err != nil {
		c.log.Warn(ctx, "persisted session unreadable", "error", err)
	}
	if err == nil && persisted.AdminSession {
		p.mu.Lock()
		p.admin = true
		p.mu.Unlock()
		c.binding.AdoptSyntheticAdmin(persisted.AdminEmail)
		c.markAuth(p)
		return
	}

	c.binding.Start(ctx)
}

// Resume attaches the session binding to the provider when the current
// pass was short-circuited by a persisted admin session. It is called once
// that session ends so later sign-ins reach the binding. It reports whether
// the binding was attached.
func (c *Coordinator) Resume() bool {
	p := c.pass()
	if p == nil {
		return false
	}
	p.mu.Lock()
	admin := p.admin
	p.mu.Unlock()
	if !admin {
		return false
	}
	c.binding.Start(p.ctx)
	return true
}

// Restart tears down the current pass and begins a fresh one with both
// flags cleared.
func (c *Coordinator) Restart(ctx context.Context) {
	c.Stop()
	c.binding.Clear()
	c.Start(ctx)
}

// Stop ends the current pass: the preload is cancelled and both the
// auth-state and profile subscriptions are torn down.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	p := c.current
	c.current = nil
	c.mu.Unlock()

	if p != nil {
		p.cancel()
	}
	c.binding.Stop()
}

// MarkAuthReady sets the auth flag of the current pass. Repeated calls have
// no further effect.
func (c *Coordinator) MarkAuthReady() {
	if p := c.pass(); p != nil {
		c.markAuth(p)
	}
}

// MarkImageReady sets the image flag of the current pass. Repeated calls
// have no further effect.
func (c *Coordinator) MarkImageReady() {
	if p := c.pass(); p != nil {
		c.markImage(p, nil)
	}
}

// Ready reports whether the current pass has both signals.
func (c *Coordinator) Ready() bool {
	p := c.pass()
	return p != nil && p.authReady.Load() && p.imageReady.Load()
}

// Loading is the negation of Ready.
func (c *Coordinator) Loading() bool {
	return !c.Ready()
}

// Done returns a channel closed when the current pass becomes ready. With
// no pass running it returns a channel that never closes.
func (c *Coordinator) Done() <-chan struct{} {
	if p := c.pass(); p != nil {
		return p.done
	}
	return make(chan struct{})
}

// State returns the readiness of the current pass.
func (c *Coordinator) State() Readiness {
	p := c.pass()
	if p == nil {
		return Readiness{}
	}
	return p.readiness()
}

func (c *Coordinator) pass() *pass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Coordinator) markAuth(p *pass) {
	p.authReady.Store(true)
	c.check(p)
}

func (c *Coordinator) markImage(p *pass, err error) {
	if err != nil {
		p.mu.Lock()
		p.imageErr = err
		p.mu.Unlock()
	}
	p.imageReady.Store(true)
	c.check(p)
}

// check is called after each flag transition from either side. The ready
// transition happens at most once per pass.
func (c *Coordinator) check(p *pass) {
	if !p.authReady.Load() || !p.imageReady.Load() {
		return
	}
	if c.pass() != p {
		// Stopped before both signals arrived.
		return
	}
	p.once.Do(func() {
		p.mu.Lock()
		p.elapsed = c.clock().Sub(p.started)
		p.mu.Unlock()
		close(p.done)

		r := p.readiness()
		c.log.Info(context.Background(), "bootstrap ready",
			"pass", r.Pass, "elapsed", r.Elapsed, "admin", r.Admin, "image_error", r.ImageErr != nil)

		c.mu.Lock()
		hooks := append(([]func(Readiness))(nil), c.hooks...)
		c.mu.Unlock()
		if len(hooks) > 0 {
			go func() {
				for _, fn := range hooks {
					fn(r)
				}
			}()
		}
	})
}

func (c *Coordinator) preloadHero(ctx context.Context, p *pass) {
	var err error
	defer func() {
		c.markImage(p, err)
	}()

	if c.slides == nil || c.preloader == nil {
		return
	}

	slide, ok, err := c.slides.FirstSlide(ctx)
	if err != nil {
		c.log.Warn(ctx, "hero slides unavailable", "error", err)
		return
	}
	if !ok {
		c.log.Debug(ctx, "no hero slides configured")
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err = c.preloader.Preload(loadCtx, slide.Image); err != nil {
		c.log.Warn(ctx, "hero image preload failed", "url", slide.Image, "error", err)
	}
}

func (p *pass) readiness() Readiness {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Readiness{
		Pass:       p.id,
		AuthReady:  p.authReady.Load(),
		ImageReady: p.imageReady.Load(),
		Admin:      p.admin,
		StartedAt:  p.started,
		Elapsed:    p.elapsed,
		ImageErr:   p.imageErr,
	}
}
