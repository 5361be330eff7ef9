// Package trips implements the road trip planning engine: origin
// resolution, the plan/discover/recalculate pipeline, the waypoint
// ledger, and live navigation progress tracking.
package trips

import (
	"backend/geo"

	"github.com/paulmach/orb"
)

// StopKind classifies a suggested stop.
type StopKind string

const (
	StopFuel   StopKind = "fuel"
	StopFood   StopKind = "food"
	StopScenic StopKind = "scenic"
)

// RouteStep is a single turn-by-turn instruction unit within a leg.
type RouteStep struct {
	StartLocation  geo.Position `json:"startLocation"`
	DistanceMeters int          `json:"distanceMeters"`
	Instruction    string       `json:"instruction"`
}

// RouteLeg is one continuous travel segment between two consecutive
// stops, including the true start and end of the trip.
type RouteLeg struct {
	StartLocation   geo.Position `json:"startLocation"`
	EndLocation     geo.Position `json:"endLocation"`
	DistanceMeters  int          `json:"distanceMeters"`
	DurationSeconds int          `json:"durationSeconds"`
	Steps           []RouteStep  `json:"steps"`
}

// Route is a provider-computed route. Legs are in travel order; when
// waypoints are present len(Legs) == len(waypoints)+1.
type Route struct {
	Legs             []RouteLeg `json:"legs"`
	OptimizedOrder   []int      `json:"optimizedOrder,omitempty"`
	OverviewPolyline string     `json:"overviewPolyline,omitempty"`
	Bounds           *orb.Bound `json:"bounds,omitempty"`
}

// DistanceMeters sums the leg distances.
func (r *Route) DistanceMeters() int {
	total := 0
	for _, leg := range r.Legs {
		total += leg.DistanceMeters
	}
	return total
}

// DurationSeconds sums the leg durations.
func (r *Route) DurationSeconds() int {
	total := 0
	for _, leg := range r.Legs {
		total += leg.DurationSeconds
	}
	return total
}

// Steps flattens every leg's steps into travel order.
func (r *Route) Steps() []RouteStep {
	var steps []RouteStep
	for _, leg := range r.Legs {
		steps = append(steps, leg.Steps...)
	}
	return steps
}

// Destination returns the end location of the final leg.
func (r *Route) Destination() (geo.Position, bool) {
	if len(r.Legs) == 0 {
		return geo.Position{}, false
	}
	return r.Legs[len(r.Legs)-1].EndLocation, true
}

// CandidateStop is a provider-suggested stop along the route. ID is
// assigned locally at discovery time and is the preferred key for
// accept/reject; Name is only unique within one discovery result.
type CandidateStop struct {
	ID               string        `json:"id"`
	Kind             StopKind      `json:"kind"`
	Name             string        `json:"name"`
	Category         string        `json:"category"`
	Position         *geo.Position `json:"position,omitempty"`
	DistanceOffRoute string        `json:"distanceOffRoute,omitempty"`
	Rationale        string        `json:"rationale,omitempty"`
}

// Waypoint is a user-accepted stop that is part of the driven route.
// Category is copied from the originating candidate at acceptance time.
type Waypoint struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Position geo.Position `json:"position"`
	Category string       `json:"category"`
}

// WaypointRef is the name/position pair exchanged with the routing
// provider on recalculation.
type WaypointRef struct {
	Name     string       `json:"name"`
	Position geo.Position `json:"position"`
}
