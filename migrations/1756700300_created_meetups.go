package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		venues, err := app.FindCollectionByNameOrId("venues")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("meetups")

		collection.Fields.Add(
			&core.TextField{Name: "title", Required: true, Max: 200},
			&core.EditorField{Name: "description"},
			&core.TextField{Name: "image", Max: 500},
			&core.DateField{Name: "start_time", Required: true},
			&core.DateField{Name: "end_time"},
			&core.NumberField{Name: "max_attendees", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "category", Max: 100},
			&core.JSONField{Name: "tags", MaxSize: 2000},
			&core.TextField{Name: "location", Max: 500},
			// Nullable lat/lng pair; null means "no precise point".
			&core.JSONField{Name: "coordinates", MaxSize: 200},
			&core.RelationField{Name: "creator", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "venue", CollectionId: venues.Id, MaxSelect: 1},
			&core.SelectField{Name: "visibility", Values: []string{"public", "private"}, MaxSelect: 1},
			&core.BoolField{Name: "is_free"},
			&core.NumberField{Name: "price_per_person", Min: types.Pointer(0.0)},
			&core.BoolField{Name: "is_blind_meet"},
			&core.SelectField{Name: "type", Values: []string{"activity", "event"}, MaxSelect: 1},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{
				"UPCOMING", "ONGOING", "PENDING_APPROVAL", "REJECTED", "COMPLETED", "CANCELLED",
			}},
			&core.SelectField{Name: "venue_approval_status", MaxSelect: 1, Values: []string{
				"pending", "approved", "rejected",
			}},
			&core.NumberField{Name: "venue_approved_price", Min: types.Pointer(0.0)},
			&core.TextField{Name: "venue_rejection_reason", Max: 500},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_meetups_status", false, "status", "")
		collection.AddIndex("idx_meetups_start_time", false, "start_time", "")
		collection.AddIndex("idx_meetups_venue_status", false, "venue, status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("meetups")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
