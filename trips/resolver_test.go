package trips

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"backend/geo"
)

// stubDevices scripts a device source and counts acquisitions.
type stubDevices struct {
	pos   geo.Position
	err   error
	calls int
}

func (s *stubDevices) Current(_ context.Context, _ AcquireOptions) (geo.Position, error) {
	s.calls++
	if s.err != nil {
		return geo.Position{}, s.err
	}
	return s.pos, nil
}

func (s *stubDevices) Watch(_ context.Context) <-chan geo.Position {
	ch := make(chan geo.Position)
	close(ch)
	return ch
}

func TestResolvePrecedence(t *testing.T) {
	home := geo.Position{Lat: 38.58, Lon: -121.49}

	tests := []struct {
		name         string
		text         string
		deviceErr    error
		wantOrigin   bool
		wantNeeds    bool
		wantAcquired bool
	}{
		{
			name: "explicit from-to never requests the device position",
			text: "plan a trip from Sacramento to Portland",
		},
		{
			name: "from-to with extra words",
			text: "I'd like a scenic route from Denver to Moab please",
		},
		{
			name:         "explicit current location phrase",
			text:         "plan a route to Tahoe from my location",
			wantOrigin:   true,
			wantAcquired: true,
		},
		{
			name:         "from here counts as current location, not from-to",
			text:         "from here to Boston",
			wantOrigin:   true,
			wantAcquired: true,
		},
		{
			name:         "destination only uses the device position",
			text:         "plan a trip to Yosemite",
			wantOrigin:   true,
			wantAcquired: true,
		},
		{
			name:         "no from clause defaults to the device position",
			text:         "weekend drive along the coast",
			wantOrigin:   true,
			wantAcquired: true,
		},
		{
			name: "unclassifiable from clause is left to the provider",
			text: "my trip to Boston from home",
		},
		{
			name:         "acquisition failure without from clause needs location",
			text:         "plan a trip to Yosemite",
			deviceErr:    ErrNoFix,
			wantNeeds:    true,
			wantAcquired: true,
		},
		{
			name:         "acquisition failure with a from clause stays quiet",
			text:         "starting from here to Boston",
			deviceErr:    ErrNoFix,
			wantAcquired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := &stubDevices{pos: home, err: tt.deviceErr}
			resolver := NewOriginResolver(devices, nil)

			res := resolver.Resolve(context.Background(), tt.text)

			if tt.wantOrigin {
				assert.NotNil(t, res.Origin)
				assert.Equal(t, home, *res.Origin)
			} else {
				assert.Nil(t, res.Origin)
			}
			assert.Equal(t, tt.wantNeeds, res.NeedsLocation)
			if tt.wantAcquired {
				assert.Equal(t, 1, devices.calls)
			} else {
				assert.Zero(t, devices.calls, "device position must not be requested")
			}
		})
	}
}

func TestResolveFailureIsNotFatal(t *testing.T) {
	devices := &stubDevices{err: errors.New("gps disabled")}
	resolver := NewOriginResolver(devices, nil)

	res := resolver.Resolve(context.Background(), "take me to the mountains")
	assert.Nil(t, res.Origin)
	assert.True(t, res.NeedsLocation)
}
