package trips

import (
	"context"

	"backend/geo"
)

// ChatRequest is one conversational turn sent to the planning provider.
type ChatRequest struct {
	Message        string        `json:"message"`
	TripRequestID  string        `json:"tripRequestId,omitempty"`
	OriginOverride *geo.Position `json:"originOverride,omitempty"`
}

// ChatResult is the provider's reply to a conversational turn. The
// provider assigns TripRequestID on the first turn and echoes it back
// on later ones.
type ChatResult struct {
	Response       string `json:"response"`
	TripRequestID  string `json:"tripRequestId"`
	HasMissingInfo bool   `json:"hasMissingInfo"`
}

// DiscoverResult carries the suggested stops and, when the provider
// has already threaded a default waypoint set, an updated route.
type DiscoverResult struct {
	Stops []CandidateStop `json:"stops"`
	Route *Route          `json:"route,omitempty"`
}

// RecalcResult carries the recalculated route and the waypoints in the
// order the provider chose to drive them.
type RecalcResult struct {
	Route     *Route        `json:"route"`
	Waypoints []WaypointRef `json:"waypoints"`
}

// Planner is the external chat/routing provider consumed by a Session.
// Implementations must be safe for concurrent use.
type Planner interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	PlanRoute(ctx context.Context, tripRequestID string) (*Route, error)
	DiscoverStops(ctx context.Context, tripRequestID string) (*DiscoverResult, error)
	Recalculate(ctx context.Context, tripRequestID string, waypoints []WaypointRef) (*RecalcResult, error)
}
