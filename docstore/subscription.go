package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Exists bool            `json:"exists"`
	Value  json.RawMessage `json:"value,omitempty"`
}

func encodeEnvelope(exists bool, value []byte) ([]byte, error) {
	data, err := json.Marshal(envelope{Exists: exists, Value: value})
	if err != nil {
		return nil, fmt.Errorf("encode change envelope: %w", err)
	}
	return data, nil
}

// Subscription is a live view of one document. Callbacks run on a single
// goroutine in the order changes were published.
type Subscription struct {
	path   string
	key    string
	pubsub *redis.PubSub
	fn     func(Snapshot)

	mu      sync.Mutex
	stopped bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Subscribe delivers the current value of path to fn, then every subsequent
// change. The initial read happens after the channel subscription is
// confirmed, so no change between the two is lost.
//
// fn must not call Close on its own subscription.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (*Subscription, error) {
	col, key, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe %s: nil callback", path)
	}

	pubsub := s.redis.Subscribe(ctx, s.channel(col, key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	initial, err := s.Get(ctx, path)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &Subscription{
		path:   joinPath(col, key),
		key:    key,
		pubsub: pubsub,
		fn:     fn,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go sub.run(initial, pubsub.Channel())

	return sub, nil
}

func (s *Subscription) run(initial Snapshot, ch <-chan *redis.Message) {
	defer close(s.done)

	s.deliver(initial)
	for {
		select {
		case <-s.stop:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			s.deliver(Snapshot{
				Path:   s.path,
				Key:    s.key,
				Exists: env.Exists,
				Value:  env.Value,
			})
		}
	}
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.fn(snap)
}

// Path returns the subscribed document path.
func (s *Subscription) Path() string {
	return s.path
}

// Close stops delivery. When Close returns, fn is not running and will not
// run again.
func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		close(s.stop)
		s.closeErr = s.pubsub.Close()
		<-s.done
	})
	return s.closeErr
}
