package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering. A disabled config yields a nil
// dispatcher, whose methods are no-ops.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands auth-flow events to a sink on a single goroutine, so a
// slow sink never stalls a login or a code dispatch. Events dropped on a
// full buffer are counted per Family.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	queue      chan Event
	stop       chan struct{}
	wg         sync.WaitGroup

	// Keys are fixed at construction; only the counters change.
	dropped map[Family]*atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, cfg.BufferSize),
		stop:       make(chan struct{}),
		dropped:    make(map[Family]*atomic.Uint64, len(Families)),
	}
	for _, f := range Families {
		d.dropped[f] = new(atomic.Uint64)
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still queued once Close has been called.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event, stamping it when Timestamp is unset. With DropIfFull a
// full buffer drops the event and counts it against its family; otherwise
// Emit waits for room, for ctx, or for Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped[FamilyOf(event.EventType)].Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped returns the number of events dropped across all families.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for _, c := range d.dropped {
		total += c.Load()
	}
	return total
}

// DroppedByFamily returns the drop count of every family, zeros included.
func (d *Dispatcher) DroppedByFamily() map[Family]uint64 {
	if d == nil {
		return nil
	}
	out := make(map[Family]uint64, len(d.dropped))
	for f, c := range d.dropped {
		out[f] = c.Load()
	}
	return out
}
