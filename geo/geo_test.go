package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Position
		want      float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Position{Lat: 37.7749, Lon: -122.4194},
			b:         Position{Lat: 37.7749, Lon: -122.4194},
			want:      0,
			tolerance: 0.001,
		},
		{
			name:      "one degree of latitude",
			a:         Position{Lat: 0, Lon: 0},
			b:         Position{Lat: 1, Lon: 0},
			want:      111195, // 2*pi*6371km / 360
			tolerance: 50,
		},
		{
			name:      "san francisco to los angeles",
			a:         Position{Lat: 37.7749, Lon: -122.4194},
			b:         Position{Lat: 34.0522, Lon: -118.2437},
			want:      559000,
			tolerance: 2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestInitialBearing(t *testing.T) {
	origin := Position{Lat: 0, Lon: 0}

	tests := []struct {
		name   string
		target Position
		want   float64
	}{
		{"due north", Position{Lat: 1, Lon: 0}, 0},
		{"due east", Position{Lat: 0, Lon: 1}, 90},
		{"due south", Position{Lat: -1, Lon: 0}, 180},
		{"due west", Position{Lat: 0, Lon: -1}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialBearing(origin, tt.target)
			assert.InDelta(t, tt.want, got, 0.01)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		})
	}
}

func TestMiles(t *testing.T) {
	assert.InDelta(t, 62.1371, Miles(100000), 0.001)
}

func TestDecodePolyline(t *testing.T) {
	// Encoded form of (38.5, -120.2), (40.7, -120.95), (43.252, -126.453).
	positions, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.InDelta(t, 38.5, positions[0].Lat, 0.0001)
	assert.InDelta(t, -120.2, positions[0].Lon, 0.0001)
	assert.InDelta(t, 43.252, positions[2].Lat, 0.0001)
}

func TestBounds(t *testing.T) {
	b := Bounds([]Position{
		{Lat: 10, Lon: 20},
		{Lat: -5, Lon: 40},
	})
	assert.Equal(t, -5.0, b.Min[1])
	assert.Equal(t, 20.0, b.Min[0])
	assert.Equal(t, 10.0, b.Max[1])
	assert.Equal(t, 40.0, b.Max[0])
}
