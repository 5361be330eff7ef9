package trips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrStopNotFound is returned when an accept/reject target matches
	// neither a candidate nor a ledger entry.
	ErrStopNotFound = errors.New("stop not found")
	// ErrStopWithoutPosition is returned when a candidate with no
	// resolved position is accepted; it cannot be routed through.
	ErrStopWithoutPosition = errors.New("stop has no position")
)

// ChatReply is what one conversational turn produces for the caller.
type ChatReply struct {
	Response       string `json:"response"`
	NeedsLocation  bool   `json:"needsLocation"`
	HasMissingInfo bool   `json:"hasMissingInfo"`
}

// Snapshot is a read-only view of the session for the presentation
// layer.
type Snapshot struct {
	ID            string          `json:"id"`
	TripRequestID string          `json:"tripRequestId,omitempty"`
	Route         *Route          `json:"route,omitempty"`
	Candidates    []CandidateStop `json:"candidates"`
	Waypoints     []Waypoint      `json:"waypoints"`
	Navigation    NavigationState `json:"navigation"`
}

// Session owns one planning conversation: the trip request identity,
// the current route, the candidate stops, and the waypoint ledger.
// Handlers run concurrently, so all state is guarded by mu; stale
// responses from superseded pipeline calls are detected with a single
// route generation shared by every writer of route/candidates/
// waypoints and discarded instead of applied out of order.
type Session struct {
	ID string

	mu       sync.Mutex
	planner  Planner
	devices  *DeviceFeed
	resolver *OriginResolver
	nav      *Navigator
	log      *slog.Logger

	tripRequestID string
	route         *Route
	candidates    []CandidateStop
	waypoints     []Waypoint

	// routeGen is bumped whenever a pipeline request is issued or the
	// ledger mutates. An in-flight response whose generation no longer
	// matches is stale and must not be applied.
	routeGen uint64
}

// NewSession builds an empty session over the given provider. Each
// session carries its own device feed; position reports from the
// client are scoped to the conversation.
func NewSession(planner Planner, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	devices := NewDeviceFeed()
	id := uuid.NewString()
	log = log.With("sessionId", id)
	return &Session{
		ID:       id,
		planner:  planner,
		devices:  devices,
		resolver: NewOriginResolver(devices, log),
		nav:      NewNavigator(devices, log),
		log:      log,
	}
}

// Devices exposes the session's device feed so the transport layer can
// push position reports into it.
func (s *Session) Devices() *DeviceFeed { return s.devices }

// Navigator exposes the navigation tracker.
func (s *Session) Navigator() *Navigator { return s.nav }

// HandleMessage runs one conversational turn: resolve the origin, send
// the turn to the provider, and when no information is missing advance
// the pipeline (plan, then discover) exactly once.
func (s *Session) HandleMessage(ctx context.Context, message string) (*ChatReply, error) {
	resolution := s.resolver.Resolve(ctx, message)

	s.mu.Lock()
	req := ChatRequest{
		Message:        message,
		TripRequestID:  s.tripRequestID,
		OriginOverride: resolution.Origin,
	}
	s.mu.Unlock()

	chat, err := s.planner.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat turn: %w", err)
	}

	s.mu.Lock()
	if chat.TripRequestID != "" && chat.TripRequestID != s.tripRequestID {
		// A fresh trip request: discard the previous conversation's
		// accumulated route and stops.
		s.tripRequestID = chat.TripRequestID
		s.route = nil
		s.candidates = nil
		s.waypoints = nil
		s.routeGen++
	}
	s.mu.Unlock()

	reply := &ChatReply{
		Response:       chat.Response,
		NeedsLocation:  resolution.NeedsLocation,
		HasMissingInfo: chat.HasMissingInfo,
	}

	if chat.HasMissingInfo {
		return reply, nil
	}

	if err := s.planAndDiscover(ctx); err != nil {
		// The turn itself succeeded; the pipeline halt is surfaced
		// separately and prior state is left intact.
		s.log.Error("planning pipeline halted", "error", err)
		return reply, err
	}
	return reply, nil
}

// planAndDiscover runs the plan stage and, gated on its success, the
// discover stage exactly once.
func (s *Session) planAndDiscover(ctx context.Context) error {
	if err := s.plan(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.routeGen++
	gen := s.routeGen
	id := s.tripRequestID
	s.mu.Unlock()

	discovered, err := s.planner.DiscoverStops(ctx, id)
	if err != nil {
		return fmt.Errorf("discover stops: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.routeGen {
		s.log.Debug("discarding stale discovery response", "generation", gen)
		return nil
	}
	s.candidates = assignStopIDs(discovered.Stops)
	if discovered.Route != nil {
		s.route = discovered.Route
	}
	return nil
}

// plan fetches the base route with no waypoints. A response issued
// before a newer pipeline request or ledger mutation is not applied.
func (s *Session) plan(ctx context.Context) error {
	s.mu.Lock()
	s.routeGen++
	gen := s.routeGen
	id := s.tripRequestID
	s.mu.Unlock()

	route, err := s.planner.PlanRoute(ctx, id)
	if err != nil {
		return fmt.Errorf("plan route: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.routeGen {
		s.log.Debug("discarding stale plan response", "generation", gen)
		return nil
	}
	s.route = route
	return nil
}

// AcceptStop moves a candidate into the waypoint ledger, preserving
// its category, and recalculates the route with the full ledger in
// current order.
func (s *Session) AcceptStop(ctx context.Context, stopID string) error {
	s.mu.Lock()
	candidate, idx, found := lo.FindIndexOf(s.candidates, func(c CandidateStop) bool {
		return c.ID == stopID || c.Name == stopID
	})
	if !found {
		s.mu.Unlock()
		return ErrStopNotFound
	}
	if candidate.Position == nil {
		s.mu.Unlock()
		return ErrStopWithoutPosition
	}

	s.candidates = append(s.candidates[:idx], s.candidates[idx+1:]...)
	s.waypoints = append(s.waypoints, Waypoint{
		ID:       candidate.ID,
		Name:     candidate.Name,
		Position: *candidate.Position,
		Category: candidate.Category,
	})
	s.mu.Unlock()

	return s.recalculate(ctx)
}

// RejectStop drops a candidate (no backend call) or removes a ledger
// entry. Removing the last waypoint falls back to re-planning the base
// route rather than recalculating with zero waypoints.
func (s *Session) RejectStop(ctx context.Context, stopID string) error {
	s.mu.Lock()
	if _, idx, found := lo.FindIndexOf(s.candidates, func(c CandidateStop) bool {
		return c.ID == stopID || c.Name == stopID
	}); found {
		s.candidates = append(s.candidates[:idx], s.candidates[idx+1:]...)
		s.mu.Unlock()
		return nil
	}

	_, idx, found := lo.FindIndexOf(s.waypoints, func(w Waypoint) bool {
		return w.ID == stopID || w.Name == stopID
	})
	if !found {
		s.mu.Unlock()
		return ErrStopNotFound
	}
	s.waypoints = append(s.waypoints[:idx], s.waypoints[idx+1:]...)
	empty := len(s.waypoints) == 0
	s.mu.Unlock()

	if empty {
		return s.plan(ctx)
	}
	return s.recalculate(ctx)
}

// recalculate submits the ledger in current order and applies the
// provider's route and optimized waypoint order. A response superseded
// by any newer pipeline request, including a reject-triggered re-plan,
// is discarded rather than applied out of order.
func (s *Session) recalculate(ctx context.Context) error {
	s.mu.Lock()
	s.routeGen++
	gen := s.routeGen
	id := s.tripRequestID
	refs := lo.Map(s.waypoints, func(w Waypoint, _ int) WaypointRef {
		return WaypointRef{Name: w.Name, Position: w.Position}
	})
	s.mu.Unlock()

	result, err := s.planner.Recalculate(ctx, id, refs)
	if err != nil {
		return fmt.Errorf("recalculate route: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.routeGen {
		s.log.Debug("discarding stale recalculation response", "generation", gen)
		return nil
	}
	s.route = result.Route
	s.reconcileOrder(result.Waypoints)

	if s.route != nil && len(s.route.Legs) > 0 && len(s.waypoints) != len(s.route.Legs)-1 {
		s.log.Warn("waypoint count does not match route legs",
			"waypoints", len(s.waypoints), "legs", len(s.route.Legs))
	}
	return nil
}

// reconcileOrder rebuilds the ledger in the order the provider
// returned, matching each entry back to an existing waypoint so its
// metadata survives reordering. An unmatched entry is synthesized with
// category "stop"; that signals the ledger and provider have drifted
// apart. Callers hold s.mu.
func (s *Session) reconcileOrder(providerOrder []WaypointRef) {
	if len(providerOrder) == 0 {
		return
	}

	reconciled := make([]Waypoint, 0, len(providerOrder))
	for _, ref := range providerOrder {
		existing, ok := lo.Find(s.waypoints, func(w Waypoint) bool {
			return w.Name == ref.Name
		})
		if !ok {
			s.log.Warn("provider returned unknown waypoint", "name", ref.Name)
			existing = Waypoint{
				ID:       uuid.NewString(),
				Name:     ref.Name,
				Position: ref.Position,
				Category: "stop",
			}
		}
		reconciled = append(reconciled, existing)
	}
	s.waypoints = reconciled
}

// StartNavigation enters live navigation over the current route.
func (s *Session) StartNavigation() error {
	s.mu.Lock()
	route := s.route
	s.mu.Unlock()
	return s.nav.Start(route)
}

// StopNavigation leaves navigation and tears down the fix stream.
func (s *Session) StopNavigation() {
	s.nav.Stop()
}

// Close releases the session's standing resources. Safe to call more
// than once.
func (s *Session) Close() {
	s.nav.Stop()
}

// Snapshot returns a copy of the session state for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:            s.ID,
		TripRequestID: s.tripRequestID,
		Candidates:    append([]CandidateStop(nil), s.candidates...),
		Waypoints:     append([]Waypoint(nil), s.waypoints...),
		Navigation:    s.nav.State(),
	}
	if s.route != nil {
		route := *s.route
		snap.Route = &route
	}
	return snap
}

// assignStopIDs gives every discovered candidate a synthetic id so
// accept/reject does not depend on stop names being unique.
func assignStopIDs(stops []CandidateStop) []CandidateStop {
	return lo.Map(stops, func(stop CandidateStop, _ int) CandidateStop {
		if stop.ID == "" {
			stop.ID = uuid.NewString()
		}
		return stop
	})
}
