package session

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sendhisword/portal/pkg/idx"
)

// SignalChannel is the cross-process analogue of the browser's storage-event
// channel: every portal process publishes to it when its local session
// changes, and observes everyone else's publications. Convergence is
// best-effort; two processes may briefly disagree.
type SignalChannel interface {
	// Publish announces a local session change to the other participants.
	Publish(ctx context.Context) error

	// Notifications delivers change announcements from other participants.
	// A process never hears its own publications.
	Notifications() <-chan struct{}

	Close() error
}

// ============================================================================
// In-memory bus (tests, multiple controllers embedded in one process)
// ============================================================================

// Bus connects MemoryChannels inside a single process.
type Bus struct {
	mu      sync.Mutex
	members []*MemoryChannel
}

func NewBus() *Bus { return &Bus{} }

// Join adds a new participant to the bus.
func (b *Bus) Join() *MemoryChannel {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := &MemoryChannel{bus: b, notify: make(chan struct{}, 8)}
	b.members = append(b.members, ch)
	return ch
}

type MemoryChannel struct {
	bus    *Bus
	notify chan struct{}
}

func (c *MemoryChannel) Publish(ctx context.Context) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()

	for _, member := range c.bus.members {
		if member == c {
			continue
		}
		select {
		case member.notify <- struct{}{}:
		default:
			// Subscriber is behind; it will converge on its next wakeup
		}
	}
	return nil
}

func (c *MemoryChannel) Notifications() <-chan struct{} { return c.notify }

func (c *MemoryChannel) Close() error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()

	for i, member := range c.bus.members {
		if member == c {
			c.bus.members = append(c.bus.members[:i], c.bus.members[i+1:]...)
			break
		}
	}
	return nil
}

// ============================================================================
// File-based channel (cross-process)
// ============================================================================

// DefaultSignalPollInterval is how often the file channel looks for foreign
// publications.
const DefaultSignalPollInterval = 2 * time.Second

// FileChannel signals through a well-known file: Publish writes a fresh
// nonce, and a poll loop reports nonces written by other processes.
type FileChannel struct {
	path   string
	notify chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	lastSeen string
}

// NewFileChannel starts watching path. The file does not need to exist yet.
func NewFileChannel(path string, pollInterval time.Duration) *FileChannel {
	if pollInterval <= 0 {
		pollInterval = DefaultSignalPollInterval
	}

	c := &FileChannel{
		path:   path,
		notify: make(chan struct{}, 8),
		stop:   make(chan struct{}),
	}

	// Seed lastSeen so a pre-existing nonce doesn't fire a spurious signal
	if data, err := os.ReadFile(path); err == nil {
		c.lastSeen = string(data)
	}

	c.wg.Add(1)
	go c.poll(pollInterval)
	return c
}

func (c *FileChannel) Publish(ctx context.Context) error {
	nonce := idx.New().String()

	c.mu.Lock()
	c.lastSeen = nonce // own writes are not notifications
	c.mu.Unlock()

	return os.WriteFile(c.path, []byte(nonce), 0o600)
}

func (c *FileChannel) Notifications() <-chan struct{} { return c.notify }

func (c *FileChannel) Close() error {
	close(c.stop)
	c.wg.Wait()
	return nil
}

func (c *FileChannel) poll(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			data, err := os.ReadFile(c.path)
			if err != nil {
				continue // file missing until someone publishes
			}

			nonce := string(data)
			c.mu.Lock()
			changed := nonce != "" && nonce != c.lastSeen
			if changed {
				c.lastSeen = nonce
			}
			c.mu.Unlock()

			if changed {
				select {
				case c.notify <- struct{}{}:
				default:
				}
			}
		}
	}
}
