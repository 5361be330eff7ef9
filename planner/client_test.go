package planner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/geo"
	"backend/trips"
)

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	assert.Error(t, opts.Validate(), "base URL is required")

	opts.BaseURL = "http://localhost:9090"
	assert.NoError(t, opts.Validate())

	_, err := New(Options{})
	assert.Error(t, err)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts := DefaultOptions()
	opts.BaseURL = server.URL
	opts.APIKey = "test-key"
	client, err := New(opts)
	require.NoError(t, err)
	return client
}

func TestChat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "plan a trip to Portland", payload["message"])
		origin := payload["originOverride"].(map[string]any)
		assert.Equal(t, 38.58, origin["lat"])

		_, _ = w.Write([]byte(`{"response":"On it","tripRequestId":"trip-9","hasMissingInfo":false}`))
	})

	result, err := client.Chat(context.Background(), trips.ChatRequest{
		Message:        "plan a trip to Portland",
		OriginOverride: &geo.Position{Lat: 38.58, Lon: -121.49},
	})
	require.NoError(t, err)
	assert.Equal(t, "On it", result.Response)
	assert.Equal(t, "trip-9", result.TripRequestID)
	assert.False(t, result.HasMissingInfo)
}

func TestPlanRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/routes/plan", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"selectedRoute": {
				"legs": [{
					"startLocation": {"lat": 38.58, "lon": -121.49},
					"endLocation": {"lat": 39.53, "lon": -119.81},
					"distanceMeters": 100000,
					"durationSeconds": 3600,
					"steps": [{
						"startLocation": {"lat": 38.58, "lon": -121.49},
						"distanceMeters": 500,
						"instruction": "Head east on J St"
					}]
				}],
				"overviewPolyline": "_p~iF~ps|U_ulLnnqC"
			}
		}`))
	})

	route, err := client.PlanRoute(context.Background(), "trip-9")
	require.NoError(t, err)
	require.Len(t, route.Legs, 1)
	assert.Equal(t, 100000, route.Legs[0].DistanceMeters)
	assert.Equal(t, 3600, route.Legs[0].DurationSeconds)
	require.Len(t, route.Legs[0].Steps, 1)
	assert.Equal(t, "Head east on J St", route.Legs[0].Steps[0].Instruction)
	require.NotNil(t, route.Bounds, "bounds derived from the overview polyline")
}

func TestPlanRouteWithoutRoute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.PlanRoute(context.Background(), "trip-9")
	assert.EqualError(t, err, "provider returned no route")
}

func TestDiscoverStops(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stops/discover", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"stops": [
				{
					"kind": "fuel",
					"name": "Gas N Go",
					"category": "gas station",
					"position": {"lat": 39.0, "lon": -120.5},
					"distanceOffRoute": "0.3 mi",
					"rationale": "Last cheap fuel before the pass"
				},
				{"kind": "scenic", "name": "Vista Point", "category": "overlook"}
			]
		}`))
	})

	result, err := client.DiscoverStops(context.Background(), "trip-9")
	require.NoError(t, err)
	require.Len(t, result.Stops, 2)
	assert.Nil(t, result.Route)

	fuel := result.Stops[0]
	assert.Equal(t, trips.StopFuel, fuel.Kind)
	assert.Equal(t, "Gas N Go", fuel.Name)
	require.NotNil(t, fuel.Position)
	assert.Equal(t, 39.0, fuel.Position.Lat)

	assert.Nil(t, result.Stops[1].Position, "position is optional")
}

func TestRecalculate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/routes/recalculate", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, true, payload["optimize"])
		waypoints := payload["waypoints"].([]any)
		require.Len(t, waypoints, 2)
		first := waypoints[0].(map[string]any)
		assert.Equal(t, "Stop A", first["name"], "waypoints submitted in ledger order")

		_, _ = w.Write([]byte(`{
			"route": {"legs": [
				{"durationSeconds": 1}, {"durationSeconds": 1}, {"durationSeconds": 1}
			]},
			"waypoints": [
				{"name": "Stop B", "position": {"lat": 2, "lon": 2}},
				{"name": "Stop A", "position": {"lat": 1, "lon": 1}}
			]
		}`))
	})

	result, err := client.Recalculate(context.Background(), "trip-9", []trips.WaypointRef{
		{Name: "Stop A", Position: geo.Position{Lat: 1, Lon: 1}},
		{Name: "Stop B", Position: geo.Position{Lat: 2, Lon: 2}},
	})
	require.NoError(t, err)
	require.Len(t, result.Route.Legs, 3)
	require.Len(t, result.Waypoints, 2)
	assert.Equal(t, "Stop B", result.Waypoints[0].Name, "provider order is preserved")
}

func TestProviderErrorMessageSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": {"message": "directions quota exceeded"}}`))
	})

	_, err := client.PlanRoute(context.Background(), "trip-9")
	assert.EqualError(t, err, "directions quota exceeded")
}

func TestProviderErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.PlanRoute(context.Background(), "trip-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planner api error")
}
