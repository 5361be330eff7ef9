package trips

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"backend/geo"
)

// ErrNoFix is returned when no position fix arrives within the
// acquisition timeout.
var ErrNoFix = errors.New("no position fix available")

// AcquireOptions bounds a one-shot position acquisition.
type AcquireOptions struct {
	// Timeout caps how long Current waits for a fresh fix.
	Timeout time.Duration
	// MaxCacheAge is the oldest cached fix Current will accept.
	MaxCacheAge time.Duration
	// HighAccuracy is forwarded to the reporting client as a hint.
	HighAccuracy bool
}

// DefaultAcquireOptions matches the acquisition settings used by the
// origin resolver.
func DefaultAcquireOptions() AcquireOptions {
	return AcquireOptions{
		Timeout:     5 * time.Second,
		MaxCacheAge: 2 * time.Minute,
	}
}

// DeviceSource supplies device positions: a bounded one-shot
// acquisition and a continuous subscription that ends with ctx.
type DeviceSource interface {
	Current(ctx context.Context, opts AcquireOptions) (geo.Position, error)
	Watch(ctx context.Context) <-chan geo.Position
}

const lastFixKey = "lastFix"

type timedFix struct {
	pos geo.Position
	at  time.Time
}

// DeviceFeed is a DeviceSource fed by position reports from the
// client. The most recent fix is cached so Current can answer without
// waiting when a fresh-enough report exists.
type DeviceFeed struct {
	mu      sync.Mutex
	cache   *gocache.Cache
	subs    map[int]chan geo.Position
	waiters map[int]chan geo.Position
	nextID  int
	now     func() time.Time
}

// NewDeviceFeed returns an empty feed. Cached fixes expire after ten
// minutes regardless of the per-acquisition MaxCacheAge.
func NewDeviceFeed() *DeviceFeed {
	return &DeviceFeed{
		cache:   gocache.New(10*time.Minute, 30*time.Minute),
		subs:    map[int]chan geo.Position{},
		waiters: map[int]chan geo.Position{},
		now:     time.Now,
	}
}

// Report records a fix from the client and fans it out to watchers and
// pending one-shot acquisitions. Slow watchers drop fixes rather than
// block the reporter.
func (f *DeviceFeed) Report(pos geo.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cache.Set(lastFixKey, timedFix{pos: pos, at: f.now()}, gocache.DefaultExpiration)

	for id, ch := range f.waiters {
		ch <- pos
		delete(f.waiters, id)
	}
	for _, ch := range f.subs {
		select {
		case ch <- pos:
		default:
		}
	}
}

// Current returns a cached fix no older than opts.MaxCacheAge, or
// waits up to opts.Timeout for the next report. It fails with ErrNoFix
// on timeout and never hangs.
func (f *DeviceFeed) Current(ctx context.Context, opts AcquireOptions) (geo.Position, error) {
	f.mu.Lock()
	if v, ok := f.cache.Get(lastFixKey); ok {
		fix := v.(timedFix)
		if opts.MaxCacheAge <= 0 || f.now().Sub(fix.at) <= opts.MaxCacheAge {
			f.mu.Unlock()
			return fix.pos, nil
		}
	}

	ch := make(chan geo.Position, 1)
	id := f.nextID
	f.nextID++
	f.waiters[id] = ch
	f.mu.Unlock()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAcquireOptions().Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case pos := <-ch:
		return pos, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	f.mu.Lock()
	delete(f.waiters, id)
	f.mu.Unlock()

	// A report may have raced the timeout.
	select {
	case pos := <-ch:
		return pos, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	return geo.Position{}, ErrNoFix
}

// Watch subscribes to the fix stream. The channel is closed and the
// subscription removed when ctx is cancelled.
func (f *DeviceFeed) Watch(ctx context.Context) <-chan geo.Position {
	ch := make(chan geo.Position, 8)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Watchers reports the number of active subscriptions.
func (f *DeviceFeed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
