package trips

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// defaultStopStay is how long each stop is blocked out for in the
// exported itinerary.
const defaultStopStay = time.Duration(stopOverheadSeconds) * time.Second

// ExportItinerary renders the planned route as an iCalendar: one event
// per accepted stop plus a final arrival event, scheduled by
// accumulating leg durations from the departure time.
func ExportItinerary(route *Route, waypoints []Waypoint, departure time.Time) (*ics.Calendar, error) {
	if route == nil || len(route.Legs) == 0 {
		return nil, ErrNoRoute
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//roadtrip//itinerary//EN")

	cursor := departure
	for i, leg := range route.Legs {
		cursor = cursor.Add(time.Duration(leg.DurationSeconds) * time.Second)

		// The final leg always ends in the arrival event, even if the
		// ledger holds more waypoints than legs can account for.
		if i < len(waypoints) && i < len(route.Legs)-1 {
			w := waypoints[i]
			event := cal.AddEvent(w.ID)
			event.SetCreatedTime(departure)
			event.SetStartAt(cursor)
			event.SetEndAt(cursor.Add(defaultStopStay))
			event.SetSummary(fmt.Sprintf("Stop: %s", w.Name))
			event.SetDescription(titleCaser.String(w.Category))
			event.SetLocation(fmt.Sprintf("%.5f,%.5f", w.Position.Lat, w.Position.Lon))
			cursor = cursor.Add(defaultStopStay)
			continue
		}

		// Final leg: arrival at the destination.
		event := cal.AddEvent(fmt.Sprintf("arrival-%d", cursor.Unix()))
		event.SetCreatedTime(departure)
		event.SetStartAt(cursor)
		event.SetEndAt(cursor.Add(30 * time.Minute))
		event.SetSummary("Arrive at destination")
		event.SetLocation(fmt.Sprintf("%.5f,%.5f", leg.EndLocation.Lat, leg.EndLocation.Lon))
	}

	return cal, nil
}
