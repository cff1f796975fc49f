package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"finbot/internal/conversation"
	"finbot/internal/log"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher runs events on a fixed set of worker goroutines. Events of one
// user always land on the same worker, so they are handled in arrival order;
// different users proceed in parallel.
type Dispatcher struct {
	handle func(ctx context.Context, ev conversation.Event)
	logger *log.Logger
	shards []chan conversation.Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(workers, queueSize int, handle func(ctx context.Context, ev conversation.Event), logger *log.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentBot)
	}
	d := &Dispatcher{handle: handle, logger: logger, shards: make([]chan conversation.Event, workers)}
	for i := range d.shards {
		d.shards[i] = make(chan conversation.Event, queueSize)
	}
	return d
}

// Start launches the workers. They run until Close is called; ctx is passed
// to every handled event.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.shards {
		d.wg.Add(1)
		go d.work(ctx, i, ch)
	}
}

func (d *Dispatcher) shardFor(userID int64) int {
	return int(uint64(userID) % uint64(len(d.shards)))
}

// Submit queues ev, blocking while the user's shard is full.
func (d *Dispatcher) Submit(ctx context.Context, ev conversation.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.shards[d.shardFor(ev.UserID)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context, shard int, ch <-chan conversation.Event) {
	defer d.wg.Done()
	for ev := range ch {
		d.safeHandle(ctx, shard, ev)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, shard int, ev conversation.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Recovered from panic while handling event",
				log.FieldUserID, ev.UserID,
				log.FieldEventKind, ev.Kind.String(),
				"shard", shard,
				log.FieldError, fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	d.handle(ctx, ev)
}

// Close stops accepting events, lets the workers drain their queues and
// waits for them. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
