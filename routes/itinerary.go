package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"backend/trips"
)

// ExportItinerary serves the planned trip as an iCalendar file: one
// event per accepted stop plus the final arrival.
func (s *SessionStore) ExportItinerary(e *core.RequestEvent) error {
	session, ok := s.Get(e.Request.PathValue("id"))
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	snap := session.Snapshot()
	cal, err := trips.ExportItinerary(snap.Route, snap.Waypoints, time.Now())
	if err != nil {
		if errors.Is(err, trips.ErrNoRoute) {
			return e.JSON(http.StatusConflict, map[string]string{
				"error": "plan a route before exporting an itinerary",
			})
		}
		e.App.Logger().Error("itinerary export failed", "error", err, "sessionId", session.ID)
		return e.JSON(http.StatusInternalServerError, map[string]string{
			"error": "unable to export the itinerary",
		})
	}

	e.Response.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	e.Response.Header().Set("Content-Disposition", `attachment; filename="roadtrip.ics"`)
	return e.String(http.StatusOK, cal.Serialize())
}
