package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"backend/geo"
	"backend/trips"
)

type chatTurnRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

type chatTurnResponse struct {
	SessionID string           `json:"sessionId"`
	Reply     *trips.ChatReply `json:"reply"`
	State     trips.Snapshot   `json:"state"`
}

type stopActionRequest struct {
	SessionID string `json:"sessionId"`
	StopID    string `json:"stopId"`
}

type positionReportRequest struct {
	SessionID string  `json:"sessionId"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

type tripStateResponse struct {
	State   trips.Snapshot     `json:"state"`
	Summary *trips.TripSummary `json:"summary,omitempty"`
}

// Chat handles one conversational turn, creating a session on the
// first turn and advancing the planning pipeline when the provider has
// everything it needs.
func (s *SessionStore) Chat(e *core.RequestEvent) error {
	var req chatTurnRequest
	if err := json.NewDecoder(e.Request.Body).Decode(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.Message == "" {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
	}

	session, ok := s.Get(req.SessionID)
	if !ok {
		if req.SessionID != "" {
			return e.JSON(http.StatusNotFound, map[string]string{
				"error": "unknown session",
			})
		}
		session = s.Create()
	}

	reply, err := session.HandleMessage(e.Request.Context(), req.Message)
	if err != nil {
		e.App.Logger().Error("chat turn failed", "error", err, "sessionId", session.ID)
		if reply == nil {
			return e.JSON(http.StatusBadGateway, map[string]string{
				"error": "planning provider is unavailable",
			})
		}
		// The turn succeeded but a later pipeline stage halted; return
		// the reply with whatever state survived.
	}

	return e.JSON(http.StatusOK, chatTurnResponse{
		SessionID: session.ID,
		Reply:     reply,
		State:     session.Snapshot(),
	})
}

// TripState returns the session snapshot and its display summary.
func (s *SessionStore) TripState(e *core.RequestEvent) error {
	session, ok := s.Get(e.Request.PathValue("id"))
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	snap := session.Snapshot()
	return e.JSON(http.StatusOK, tripStateResponse{
		State:   snap,
		Summary: trips.Summarize(snap.Route, snap.Waypoints, time.Now()),
	})
}

// AcceptStop moves a suggested stop into the route and recalculates.
func (s *SessionStore) AcceptStop(e *core.RequestEvent) error {
	return s.stopAction(e, func(session *trips.Session, stopID string) error {
		return session.AcceptStop(e.Request.Context(), stopID)
	})
}

// RejectStop drops a suggestion or removes an accepted stop.
func (s *SessionStore) RejectStop(e *core.RequestEvent) error {
	return s.stopAction(e, func(session *trips.Session, stopID string) error {
		return session.RejectStop(e.Request.Context(), stopID)
	})
}

func (s *SessionStore) stopAction(e *core.RequestEvent, action func(*trips.Session, string) error) error {
	var req stopActionRequest
	if err := json.NewDecoder(e.Request.Body).Decode(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	session, ok := s.Get(req.SessionID)
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	if err := action(session, req.StopID); err != nil {
		switch {
		case errors.Is(err, trips.ErrStopNotFound):
			return e.JSON(http.StatusNotFound, map[string]string{
				"error": "stop not found",
			})
		case errors.Is(err, trips.ErrStopWithoutPosition):
			return e.JSON(http.StatusBadRequest, map[string]string{
				"error": "stop has no resolvable position",
			})
		default:
			e.App.Logger().Error("stop action failed", "error", err, "sessionId", session.ID, "stopId", req.StopID)
			return e.JSON(http.StatusBadGateway, map[string]string{
				"error": "route recalculation failed",
			})
		}
	}

	return e.JSON(http.StatusOK, session.Snapshot())
}

// ReportPosition feeds a device fix into the session: it refreshes the
// cached origin fix and drives the navigation tracker when active.
func (s *SessionStore) ReportPosition(e *core.RequestEvent) error {
	var req positionReportRequest
	if err := json.NewDecoder(e.Request.Body).Decode(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	session, ok := s.Get(req.SessionID)
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	session.Devices().Report(geo.Position{Lat: req.Lat, Lon: req.Lon})
	return e.JSON(http.StatusOK, session.Navigator().State())
}

// StartNavigation enters live navigation over the planned route.
func (s *SessionStore) StartNavigation(e *core.RequestEvent) error {
	session, ok := s.Get(e.Request.PathValue("id"))
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	if err := session.StartNavigation(); err != nil {
		switch {
		case errors.Is(err, trips.ErrNoRoute):
			return e.JSON(http.StatusConflict, map[string]string{
				"error": "plan a route before starting navigation",
			})
		case errors.Is(err, trips.ErrNavigationActive):
			return e.JSON(http.StatusConflict, map[string]string{
				"error": "navigation is already active",
			})
		default:
			return e.JSON(http.StatusInternalServerError, map[string]string{
				"error": "unable to start navigation",
			})
		}
	}

	return e.JSON(http.StatusOK, session.Navigator().State())
}

// StopNavigation leaves navigation and tears down the fix stream.
func (s *SessionStore) StopNavigation(e *core.RequestEvent) error {
	session, ok := s.Get(e.Request.PathValue("id"))
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	session.StopNavigation()
	return e.JSON(http.StatusOK, session.Navigator().State())
}
