// Package planner is the HTTP client for the external chat/routing
// provider: conversational turns, route planning, stop discovery, and
// waypoint recalculation.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"

	"backend/geo"
	"backend/trips"
)

// Options configures the provider client.
type Options struct {
	// BaseURL is the provider endpoint root.
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout caps each provider call.
	Timeout time.Duration
	// Optimize asks the provider to reorder waypoints for total travel
	// time on recalculation.
	Optimize bool
}

// DefaultOptions returns sensible client defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:  45 * time.Second,
		Optimize: true,
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("planner base URL is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("planner timeout must be positive")
	}
	return nil
}

// Client talks to the provider over HTTP. Safe for concurrent use.
type Client struct {
	opts Options
	http *http.Client
}

// New builds a client from options.
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
	}, nil
}

// Chat submits one conversational turn.
func (c *Client) Chat(ctx context.Context, req trips.ChatRequest) (*trips.ChatResult, error) {
	body, err := c.post(ctx, "/v1/chat", req)
	if err != nil {
		return nil, err
	}
	return &trips.ChatResult{
		Response:       gjson.GetBytes(body, "response").String(),
		TripRequestID:  gjson.GetBytes(body, "tripRequestId").String(),
		HasMissingInfo: gjson.GetBytes(body, "hasMissingInfo").Bool(),
	}, nil
}

// PlanRoute fetches the selected route for a trip request.
func (c *Client) PlanRoute(ctx context.Context, tripRequestID string) (*trips.Route, error) {
	body, err := c.post(ctx, "/v1/routes/plan", map[string]string{
		"tripRequestId": tripRequestID,
	})
	if err != nil {
		return nil, err
	}
	route := parseRoute(gjson.GetBytes(body, "selectedRoute"))
	if route == nil {
		return nil, errors.New("provider returned no route")
	}
	return route, nil
}

// DiscoverStops fetches suggested stops, and an updated route when the
// provider has already threaded a default waypoint set through it.
func (c *Client) DiscoverStops(ctx context.Context, tripRequestID string) (*trips.DiscoverResult, error) {
	body, err := c.post(ctx, "/v1/stops/discover", map[string]string{
		"tripRequestId": tripRequestID,
	})
	if err != nil {
		return nil, err
	}

	result := &trips.DiscoverResult{
		Route: parseRoute(gjson.GetBytes(body, "route")),
	}
	gjson.GetBytes(body, "stops").ForEach(func(_, stop gjson.Result) bool {
		candidate := trips.CandidateStop{
			Kind:             trips.StopKind(stop.Get("kind").String()),
			Name:             stop.Get("name").String(),
			Category:         stop.Get("category").String(),
			DistanceOffRoute: stop.Get("distanceOffRoute").String(),
			Rationale:        stop.Get("rationale").String(),
		}
		if pos := stop.Get("position"); pos.Exists() {
			candidate.Position = &geo.Position{
				Lat: pos.Get("lat").Float(),
				Lon: pos.Get("lon").Float(),
			}
		}
		result.Stops = append(result.Stops, candidate)
		return true
	})
	return result, nil
}

// Recalculate submits the waypoints in ledger order and returns the
// provider's route and, when optimization is on, its reordered
// waypoint list.
func (c *Client) Recalculate(ctx context.Context, tripRequestID string, waypoints []trips.WaypointRef) (*trips.RecalcResult, error) {
	body, err := c.post(ctx, "/v1/routes/recalculate", map[string]any{
		"tripRequestId": tripRequestID,
		"waypoints":     waypoints,
		"optimize":      c.opts.Optimize,
	})
	if err != nil {
		return nil, err
	}

	route := parseRoute(gjson.GetBytes(body, "route"))
	if route == nil {
		return nil, errors.New("provider returned no route")
	}
	result := &trips.RecalcResult{Route: route}
	gjson.GetBytes(body, "waypoints").ForEach(func(_, wp gjson.Result) bool {
		result.Waypoints = append(result.Waypoints, trips.WaypointRef{
			Name: wp.Get("name").String(),
			Position: geo.Position{
				Lat: wp.Get("position.lat").Float(),
				Lon: wp.Get("position.lon").Float(),
			},
		})
		return true
	})
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseProviderError(resp.Status, data)
	}
	return data, nil
}

// parseProviderError extracts the provider's error message when one is
// present in the body.
func parseProviderError(status string, data []byte) error {
	if msg := gjson.GetBytes(data, "error.message").String(); msg != "" {
		return errors.New(msg)
	}
	if msg := gjson.GetBytes(data, "error").String(); msg != "" {
		return errors.New(msg)
	}
	return fmt.Errorf("planner api error: %s", status)
}

// parseRoute reads a route object leniently; absent fields stay zero.
func parseRoute(r gjson.Result) *trips.Route {
	if !r.Exists() || !r.IsObject() {
		return nil
	}

	route := &trips.Route{
		OverviewPolyline: r.Get("overviewPolyline").String(),
	}
	r.Get("legs").ForEach(func(_, leg gjson.Result) bool {
		parsed := trips.RouteLeg{
			StartLocation:   parsePosition(leg.Get("startLocation")),
			EndLocation:     parsePosition(leg.Get("endLocation")),
			DistanceMeters:  int(leg.Get("distanceMeters").Int()),
			DurationSeconds: int(leg.Get("durationSeconds").Int()),
		}
		leg.Get("steps").ForEach(func(_, step gjson.Result) bool {
			parsed.Steps = append(parsed.Steps, trips.RouteStep{
				StartLocation:  parsePosition(step.Get("startLocation")),
				DistanceMeters: int(step.Get("distanceMeters").Int()),
				Instruction:    step.Get("instruction").String(),
			})
			return true
		})
		route.Legs = append(route.Legs, parsed)
		return true
	})
	r.Get("optimizedOrder").ForEach(func(_, idx gjson.Result) bool {
		route.OptimizedOrder = append(route.OptimizedOrder, int(idx.Int()))
		return true
	})

	if bounds := r.Get("bounds"); bounds.Exists() {
		b := orb.Bound{
			Min: orb.Point{bounds.Get("sw.lon").Float(), bounds.Get("sw.lat").Float()},
			Max: orb.Point{bounds.Get("ne.lon").Float(), bounds.Get("ne.lat").Float()},
		}
		route.Bounds = &b
	} else if poly := route.OverviewPolyline; poly != "" {
		if positions, err := geo.DecodePolyline(poly); err == nil && len(positions) > 0 {
			b := geo.Bounds(positions)
			route.Bounds = &b
		}
	}
	return route
}

func parsePosition(r gjson.Result) geo.Position {
	return geo.Position{
		Lat: r.Get("lat").Float(),
		Lon: r.Get("lon").Float(),
	}
}
