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
		meetups, err := app.FindCollectionByNameOrId("meetups")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.RelationField{Name: "meetup", Required: true, CollectionId: meetups.Id, MaxSelect: 1, CascadeDelete: true},
			// Plain text, not a relation: tickets outlive membership rows and
			// a dangling relation would fail record validation on later saves.
			&core.TextField{Name: "member", Required: true, Max: 30},
			&core.RelationField{Name: "user", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.TextField{Name: "number", Required: true, Max: 30},
			&core.TextField{Name: "qr_payload", Required: true, Max: 1000},
			&core.NumberField{Name: "price", Min: types.Pointer(0.0)},
			&core.DateField{Name: "expires_at", Required: true},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{
				"ACTIVE", "USED", "EXPIRED", "CANCELLED",
			}},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_number", true, "number", "")
		collection.AddIndex("idx_tickets_member", true, "member", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
