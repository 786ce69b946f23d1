package idp

import (
	"sync"
	"sync/atomic"
)

// authListener delivers auth states to one subscriber on its own goroutine,
// in publish order. Once stopped, queued states are dropped; a callback
// already running is allowed to finish.
type authListener struct {
	fn      AuthStateFunc
	mu      sync.Mutex
	queue   []*Session
	wake    chan struct{}
	quit    chan struct{}
	stopped atomic.Bool
	once    sync.Once
}

func newAuthListener(fn AuthStateFunc) *authListener {
	l := &authListener{
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *authListener) push(s *Session) {
	l.mu.Lock()
	l.queue = append(l.queue, s)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *authListener) stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.quit)
	})
}

func (l *authListener) run() {
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			next := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()

			if l.stopped.Load() {
				return
			}
			l.fn(next)
		}
	}
}

// authState is the current session plus its subscribers.
type authState struct {
	mu        sync.Mutex
	current   *Session
	listeners map[uint64]*authListener
	nextID    uint64
}

func (a *authState) subscribe(fn AuthStateFunc) func() {
	a.mu.Lock()
	if a.listeners == nil {
		a.listeners = make(map[uint64]*authListener)
	}
	a.nextID++
	id := a.nextID
	l := newAuthListener(fn)
	a.listeners[id] = l
	l.push(copySession(a.current))
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
		l.stop()
	}
}

func (a *authState) set(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current = copySession(s)
	for _, l := range a.listeners {
		l.push(copySession(s))
	}
}

func (a *authState) get() (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return Session{}, false
	}
	return *a.current, true
}

func (a *authState) close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, l := range a.listeners {
		l.stop()
		delete(a.listeners, id)
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
