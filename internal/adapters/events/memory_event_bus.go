package events

import (
	"context"
	"sync"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
)

// MemoryEventBus is an in-process EventBus. Every subscriber owns an unbounded
// mailbox, so a slow consumer delays its own deliveries but never loses one.
type MemoryEventBus struct {
	mu          sync.Mutex
	subscribers map[string]map[*mailbox]struct{}
	closed      bool
	wg          sync.WaitGroup
}

// mailbox queues entries for a single subscriber in publish order
type mailbox struct {
	mu     sync.Mutex
	queue  []*entities.AuditLogEntry
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMemoryEventBus creates an in-process event bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		subscribers: make(map[string]map[*mailbox]struct{}),
	}
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// Publish enqueues entry for every current subscriber of channel
func (b *MemoryEventBus) Publish(_ context.Context, channel string, entry *entities.AuditLogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errBusClosed
	}
	for box := range b.subscribers[channel] {
		box.push(entry)
	}
	return nil
}

// Subscribe registers a new mailbox on channel. The returned channel closes once ctx ends.
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AuditLogEntry, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errBusClosed
	}
	box := &mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[*mailbox]struct{})
	}
	b.subscribers[channel][box] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	out := make(chan *entities.AuditLogEntry)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer b.remove(channel, box)
		box.drain(ctx, out)
	}()

	return out, nil
}

// Subscribers returns the number of live subscriptions on channel
func (b *MemoryEventBus) Subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[channel])
}

// Close stops every subscription and waits for their goroutines to exit
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, boxes := range b.subscribers {
		for box := range boxes {
			box.stop()
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *MemoryEventBus) remove(channel string, box *mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()

	boxes := b.subscribers[channel]
	delete(boxes, box)
	if len(boxes) == 0 {
		delete(b.subscribers, channel)
	}
}

func (m *mailbox) push(entry *entities.AuditLogEntry) {
	m.mu.Lock()
	m.queue = append(m.queue, entry)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (*entities.AuditLogEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil, false
	}
	entry := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return entry, true
}

func (m *mailbox) stop() {
	m.once.Do(func() { close(m.done) })
}

// drain forwards queued entries to out until ctx ends or the mailbox is stopped
func (m *mailbox) drain(ctx context.Context, out chan<- *entities.AuditLogEntry) {
	for {
		entry, ok := m.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case <-m.notify:
				continue
			}
		}

		select {
		case out <- entry:
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}
