package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/wanderauth/localstate"
	"github.com/MrEthical07/wanderauth/session"
	"github.com/stretchr/testify/require"
)

type fakeBinding struct {
	mu       sync.Mutex
	starts   int
	stops    int
	clears   int
	admins   []string
	resolved []func(session.Resolution)
}

func (b *fakeBinding) Start(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
}

func (b *fakeBinding) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
}

func (b *fakeBinding) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
}

func (b *fakeBinding) AdoptSyntheticAdmin(email string) {
	b.mu.Lock()
	b.admins = append(b.admins, email)
	hooks := append(([]func(session.Resolution))(nil), b.resolved...)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn(session.Resolution{})
	}
}

func (b *fakeBinding) OnResolved(fn func(session.Resolution)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved = append(b.resolved, fn)
}

func (b *fakeBinding) resolve() {
	b.mu.Lock()
	hooks := append(([]func(session.Resolution))(nil), b.resolved...)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn(session.Resolution{})
	}
}

func (b *fakeBinding) startCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts
}

type staticSlides struct {
	slide Slide
	ok    bool
	err   error
}

func (s staticSlides) FirstSlide(context.Context) (Slide, bool, error) {
	return s.slide, s.ok, s.err
}

type gatedPreloader struct {
	release chan struct{}
	err     error
	urls    chan string
}

func newGatedPreloader(err error) *gatedPreloader {
	return &gatedPreloader{release: make(chan struct{}), err: err, urls: make(chan string, 4)}
}

func (p *gatedPreloader) Preload(ctx context.Context, url string) error {
	p.urls <- url
	select {
	case <-p.release:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func heroSlides() staticSlides {
	return staticSlides{slide: Slide{Order: 0, Image: "https://cdn.example.com/hero-1.jpg"}, ok: true}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for readiness")
	}
}

func TestReadyRequiresBothFlagsAuthFirst(t *testing.T) {
	binding, pre := &fakeBinding{}, newGatedPreloader(nil)
	c := NewCoordinator(binding, localstate.NewMemoryStore(), heroSlides(), pre, Options{})
	c.Start(context.Background())
	defer c.Stop()

	require.Equal(t, "https://cdn.example.com/hero-1.jpg", <-pre.urls)
	require.True(t, c.Loading())

	binding.resolve()
	require.False(t, c.Ready())
	binding.resolve()
	require.False(t, c.Ready(), "setting the auth flag twice must not open the gate")

	close(pre.release)
	waitClosed(t, c.Done())
	require.True(t, c.Ready())
	require.False(t, c.Loading())
}

func TestReadyRequiresBothFlagsImageFirst(t *testing.T) {
	binding := &fakeBinding{}
	c := NewCoordinator(binding, localstate.NewMemoryStore(), staticSlides{}, nil, Options{})
	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State().ImageReady }, time.Second, 5*time.Millisecond)
	require.False(t, c.Ready())

	c.MarkImageReady()
	require.False(t, c.Ready())

	c.MarkAuthReady()
	waitClosed(t, c.Done())
	require.True(t, c.Ready())
}

func TestOnReadyFiresExactlyOncePerPass(t *testing.T) {
	binding := &fakeBinding{}
	c := NewCoordinator(binding, localstate.NewMemoryStore(), staticSlides{}, nil, Options{})

	var fired atomic.Int32
	got := make(chan Readiness, 4)
	c.OnReady(func(r Readiness) {
		fired.Add(1)
		got <- r
	})

	c.Start(context.Background())
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.MarkAuthReady() }()
		go func() { defer wg.Done(); c.MarkImageReady() }()
	}
	wg.Wait()

	r := <-got
	require.True(t, r.Ready())
	require.Equal(t, uint64(1), r.Pass)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestImageFailureIsSwallowed(t *testing.T) {
	cause := errors.New("404")
	binding, pre := &fakeBinding{}, newGatedPreloader(cause)
	c := NewCoordinator(binding, localstate.NewMemoryStore(), heroSlides(), pre, Options{})
	c.Start(context.Background())
	defer c.Stop()

	<-pre.urls
	close(pre.release)
	binding.resolve()

	waitClosed(t, c.Done())
	require.ErrorIs(t, c.State().ImageErr, cause)
}

func TestSlideLookupFailureStillReady(t *testing.T) {
	binding := &fakeBinding{}
	c := NewCoordinator(binding, localstate.NewMemoryStore(), staticSlides{err: errors.New("store down")}, newGatedPreloader(nil), Options{})
	c.Start(context.Background())
	defer c.Stop()

	binding.resolve()
	waitClosed(t, c.Done())
}

func TestPersistedAdminShortCircuitsProvider(t *testing.T) {
	local := localstate.NewMemoryStore()
	require.NoError(t, local.SaveAdminSession("admin@travel.com"))

	binding := &fakeBinding{}
	c := NewCoordinator(binding, local, staticSlides{}, nil, Options{})
	c.Start(context.Background())
	defer c.Stop()

	waitClosed(t, c.Done())
	require.Equal(t, 0, binding.startCount(), "provider subscription must not start")
	require.Equal(t, []string{"admin@travel.com"}, binding.admins)
	require.True(t, c.State().Admin)
}

func TestResumeAttachesBindingAfterAdminPass(t *testing.T) {
	local := localstate.NewMemoryStore()
	require.NoError(t, local.SaveAdminSession("admin@travel.com"))

	binding := &fakeBinding{}
	c := NewCoordinator(binding, local, staticSlides{}, nil, Options{})
	c.Start(context.Background())
	defer c.Stop()
	waitClosed(t, c.Done())

	require.True(t, c.Resume())
	require.Equal(t, 1, binding.startCount())
}

func TestResumeIgnoresProviderPass(t *testing.T) {
	binding := &fakeBinding{}
	c := NewCoordinator(binding, localstate.NewMemoryStore(), staticSlides{}, nil, Options{})
	require.False(t, c.Resume(), "no pass running")

	c.Start(context.Background())
	defer c.Stop()

	require.False(t, c.Resume())
	require.Equal(t, 1, binding.startCount())
}

func TestRestartBeginsFreshPass(t *testing.T) {
	binding := &fakeBinding{}
	c := NewCoordinator(binding, localstate.NewMemoryStore(), staticSlides{}, nil, Options{})
	c.Start(context.Background())
	binding.resolve()
	waitClosed(t, c.Done())
	first := c.Done()

	c.Restart(context.Background())
	defer c.Stop()

	require.NotEqual(t, first, c.Done())
	require.Equal(t, uint64(2), c.State().Pass)
	require.False(t, c.State().AuthReady)
	require.Equal(t, 2, binding.startCount())
	require.Equal(t, 1, binding.clears)

	binding.resolve()
	waitClosed(t, c.Done())
}

func TestStopPreventsLateReadiness(t *testing.T) {
	binding, pre := &fakeBinding{}, newGatedPreloader(nil)
	c := NewCoordinator(binding, localstate.NewMemoryStore(), heroSlides(), pre, Options{})

	var fired atomic.Bool
	c.OnReady(func(Readiness) { fired.Store(true) })

	c.Start(context.Background())
	<-pre.urls
	binding.resolve()
	c.Stop()

	time.Sleep(20 * time.Millisecond)
	require.False(t, fired.Load())
	require.False(t, c.Ready())
	require.Equal(t, 1, binding.stops)
}

func TestStartTwiceIsNoop(t *testing.T) {
	binding := &fakeBinding{}
	c := NewCoordinator(binding, localstate.NewMemoryStore(), staticSlides{}, nil, Options{})
	c.Start(context.Background())
	c.Start(context.Background())
	defer c.Stop()

	require.Equal(t, 1, binding.startCount())
}
