package main

import (
	"log"
	"os"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"backend/planner"
	"backend/routes"
)

func main() {
	app := pocketbase.New()

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		opts := planner.DefaultOptions()
		opts.BaseURL = os.Getenv("PLANNER_BASE_URL")
		opts.APIKey = os.Getenv("PLANNER_API_KEY")
		if os.Getenv("PLANNER_OPTIMIZE") == "false" {
			opts.Optimize = false
		}

		client, err := planner.New(opts)
		if err != nil {
			return err
		}

		if err := ensureTripsCollection(se.App); err != nil {
			return err
		}

		store := routes.NewSessionStore(client, se.App.Logger())

		g := se.Router.Group("/api/roadtrip")
		g.POST("/chat", store.Chat)
		g.GET("/sessions/{id}", store.TripState)
		g.POST("/stops/accept", store.AcceptStop)
		g.POST("/stops/reject", store.RejectStop)
		g.POST("/position", store.ReportPosition)
		g.POST("/sessions/{id}/navigation/start", store.StartNavigation)
		g.POST("/sessions/{id}/navigation/stop", store.StopNavigation)
		g.GET("/sessions/{id}/itinerary.ics", store.ExportItinerary)
		g.POST("/assistant", store.TripAssistant)
		g.POST("/trips", store.SaveTrip)
		g.GET("/trips", routes.ListTrips)

		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// ensureTripsCollection creates the saved-trips collection on first
// boot.
func ensureTripsCollection(app core.App) error {
	if _, err := app.FindCollectionByNameOrId("trips"); err == nil {
		return nil
	}

	collection := core.NewBaseCollection("trips")
	collection.Fields.Add(
		&core.TextField{Name: "name", Required: true},
		&core.JSONField{Name: "route"},
		&core.JSONField{Name: "waypoints"},
		&core.TextField{Name: "distanceMiles"},
		&core.TextField{Name: "duration"},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	return app.Save(collection)
}
