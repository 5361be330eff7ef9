package trips

import (
	"fmt"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"backend/geo"
)

// stopOverheadSeconds is added to the user-facing ETA for each
// accepted waypoint. The stored route's own duration is never touched.
const stopOverheadSeconds = 600

var titleCaser = cases.Title(language.AmericanEnglish)

var (
	tzOnce   sync.Once
	tzFinder tzf.F
)

func timezoneFinder() tzf.F {
	tzOnce.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err == nil {
			tzFinder = finder
		}
	})
	return tzFinder
}

// StopSummary is one ledger entry prepared for display.
type StopSummary struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// TripSummary is the user-facing rollup of a planned route.
type TripSummary struct {
	DistanceMiles string        `json:"distanceMiles"`
	Duration      string        `json:"duration"`
	ETA           string        `json:"eta"`
	Arrival       string        `json:"arrival,omitempty"`
	ArrivalZone   string        `json:"arrivalZone,omitempty"`
	Stops         []StopSummary `json:"stops"`
}

// Summarize derives the display summary for a route and the accepted
// waypoints, with departure as the reference time for the arrival
// clock. The ETA includes a fixed per-stop overhead on top of the
// route's drive time.
func Summarize(route *Route, waypoints []Waypoint, departure time.Time) *TripSummary {
	if route == nil || len(route.Legs) == 0 {
		return nil
	}

	driveSeconds := route.DurationSeconds()
	etaSeconds := driveSeconds + stopOverheadSeconds*len(waypoints)

	summary := &TripSummary{
		DistanceMiles: fmt.Sprintf("%.1f", geo.Miles(float64(route.DistanceMeters()))),
		Duration:      formatDuration(driveSeconds),
		ETA:           formatDuration(etaSeconds),
		Stops:         make([]StopSummary, 0, len(waypoints)),
	}

	for _, w := range waypoints {
		summary.Stops = append(summary.Stops, StopSummary{
			Name:     w.Name,
			Category: titleCaser.String(w.Category),
		})
	}

	if dest, ok := route.Destination(); ok {
		if zone, loc := destinationZone(dest); loc != nil {
			summary.Arrival = departure.Add(time.Duration(etaSeconds) * time.Second).
				In(loc).Format("3:04 PM")
			summary.ArrivalZone = zone
		}
	}

	return summary
}

// destinationZone looks up the IANA zone at the destination. Arrival
// time is omitted when the lookup fails rather than shown in the wrong
// zone.
func destinationZone(dest geo.Position) (string, *time.Location) {
	finder := timezoneFinder()
	if finder == nil {
		return "", nil
	}
	name := finder.GetTimezoneName(dest.Lon, dest.Lat)
	if name == "" {
		return "", nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", nil
	}
	return name, loc
}

// formatDuration renders seconds as "1h 5m" or "45m".
func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
