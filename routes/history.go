package routes

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"backend/trips"
)

type saveTripRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type savedTrip struct {
	Id            string `json:"id"`
	Name          string `json:"name"`
	DistanceMiles string `json:"distanceMiles,omitempty"`
	Duration      string `json:"duration,omitempty"`
	StopCount     int    `json:"stopCount"`
	Created       string `json:"created"`
}

// SaveTrip persists the session's planned route as a record so it can
// be reloaded after the conversation ends.
func (s *SessionStore) SaveTrip(e *core.RequestEvent) error {
	var req saveTripRequest
	if err := json.NewDecoder(e.Request.Body).Decode(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.Name == "" {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
	}

	session, ok := s.Get(req.SessionID)
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	snap := session.Snapshot()
	if snap.Route == nil {
		return e.JSON(http.StatusConflict, map[string]string{
			"error": "plan a route before saving the trip",
		})
	}

	collection, err := e.App.FindCollectionByNameOrId("trips")
	if err != nil {
		e.App.Logger().Error("trips collection missing", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{
			"error": "trip storage is not configured",
		})
	}

	routeJSON, err := json.Marshal(snap.Route)
	if err != nil {
		return err
	}
	waypointsJSON, err := json.Marshal(snap.Waypoints)
	if err != nil {
		return err
	}

	record := core.NewRecord(collection)
	record.Set("name", req.Name)
	record.Set("route", string(routeJSON))
	record.Set("waypoints", string(waypointsJSON))
	if summary := trips.Summarize(snap.Route, snap.Waypoints, time.Now()); summary != nil {
		record.Set("distanceMiles", summary.DistanceMiles)
		record.Set("duration", summary.Duration)
	}

	if err := e.App.Save(record); err != nil {
		e.App.Logger().Error("failed to save trip", "error", err, "sessionId", session.ID)
		return e.JSON(http.StatusInternalServerError, map[string]string{
			"error": "unable to save the trip",
		})
	}

	return e.JSON(http.StatusOK, map[string]string{"id": record.Id})
}

// ListTrips returns previously saved trips, newest first, optionally
// filtered by name.
func ListTrips(e *core.RequestEvent) error {
	var filters []dbx.Expression
	if q := e.Request.URL.Query().Get("q"); q != "" {
		filters = append(filters, dbx.NewExp("name LIKE {:q}", dbx.Params{"q": "%" + q + "%"}))
	}

	records, err := e.App.FindAllRecords("trips", filters...)
	if err != nil {
		e.App.Logger().Error("failed to list trips", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{
			"error": "unable to load saved trips",
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].GetDateTime("created").Time().After(records[j].GetDateTime("created").Time())
	})

	results := make([]savedTrip, 0, len(records))
	for _, record := range records {
		var waypoints []trips.Waypoint
		_ = record.UnmarshalJSONField("waypoints", &waypoints)

		results = append(results, savedTrip{
			Id:            record.Id,
			Name:          record.GetString("name"),
			DistanceMiles: record.GetString("distanceMiles"),
			Duration:      record.GetString("duration"),
			StopCount:     len(waypoints),
			Created:       record.GetDateTime("created").Time().UTC().Format(time.RFC3339),
		})
	}

	return e.JSON(http.StatusOK, results)
}
