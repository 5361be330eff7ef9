package trips

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/geo"
)

func TestDeviceFeedCurrentUsesFreshCache(t *testing.T) {
	feed := NewDeviceFeed()
	fix := geo.Position{Lat: 38.58, Lon: -121.49}
	feed.Report(fix)

	got, err := feed.Current(context.Background(), AcquireOptions{
		Timeout:     50 * time.Millisecond,
		MaxCacheAge: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, fix, got)
}

func TestDeviceFeedCurrentRejectsStaleCache(t *testing.T) {
	feed := NewDeviceFeed()
	now := time.Now()
	feed.now = func() time.Time { return now }
	feed.Report(geo.Position{Lat: 1, Lon: 1})

	// The cached fix is now older than the acceptable age.
	feed.now = func() time.Time { return now.Add(5 * time.Minute) }

	start := time.Now()
	_, err := feed.Current(context.Background(), AcquireOptions{
		Timeout:     50 * time.Millisecond,
		MaxCacheAge: time.Minute,
	})
	assert.ErrorIs(t, err, ErrNoFix)
	assert.Less(t, time.Since(start), time.Second, "acquisition must fail cleanly, not hang")
}

func TestDeviceFeedCurrentWaitsForNextReport(t *testing.T) {
	feed := NewDeviceFeed()
	fix := geo.Position{Lat: 2, Lon: 3}

	go func() {
		time.Sleep(10 * time.Millisecond)
		feed.Report(fix)
	}()

	got, err := feed.Current(context.Background(), AcquireOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, fix, got)
}

func TestDeviceFeedWatchEndsWithContext(t *testing.T) {
	feed := NewDeviceFeed()
	ctx, cancel := context.WithCancel(context.Background())

	ch := feed.Watch(ctx)
	feed.Report(geo.Position{Lat: 1, Lon: 1})
	require.Equal(t, 1, feed.Watchers())

	fix, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, geo.Position{Lat: 1, Lon: 1}, fix)

	cancel()
	for range ch {
		// drain until close
	}
	assert.Eventually(t, func() bool { return feed.Watchers() == 0 },
		time.Second, 10*time.Millisecond, "cancelled watch must be torn down")
}
