package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWindow is how long a repeated payload is ignored after it was accepted.
const DefaultWindow = 5 * time.Second

// Debouncer decides whether a decoded payload should be forwarded.
type Debouncer interface {
	Allow(ctx context.Context, payload string) (bool, error)
}

// MemoryDebouncer remembers accepted payloads in process.
type MemoryDebouncer struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryDebouncer creates a debouncer; window <= 0 uses DefaultWindow.
func NewMemoryDebouncer(window time.Duration) *MemoryDebouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryDebouncer{window: window, now: time.Now, seen: make(map[string]time.Time)}
}

// Allow reports true when payload was not accepted within the window. Ignored
// repeats do not extend the window.
func (d *MemoryDebouncer) Allow(_ context.Context, payload string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[payload]; ok {
		return false, nil
	}
	d.seen[payload] = now
	return true, nil
}

// RedisDebouncer shares the window through Redis so a device keeps its
// debounce state across restarts.
type RedisDebouncer struct {
	client   *redis.Client
	deviceID string
	window   time.Duration
}

func NewRedisDebouncer(client *redis.Client, deviceID string, window time.Duration) *RedisDebouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if deviceID == "" {
		deviceID = "default"
	}
	return &RedisDebouncer{client: client, deviceID: deviceID, window: window}
}

// Allow claims the payload key with SET NX and a TTL of the window.
func (d *RedisDebouncer) Allow(ctx context.Context, payload string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(payload), 1, d.window).Result()
	if err != nil {
		return false, fmt.Errorf("debounce: %w", err)
	}
	return ok, nil
}

func (d *RedisDebouncer) key(payload string) string {
	return "pjkr:scan:" + d.deviceID + ":" + payload
}
