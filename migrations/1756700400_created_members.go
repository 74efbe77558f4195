package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
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

		collection := core.NewBaseCollection("members")

		collection.Fields.Add(
			&core.RelationField{Name: "meetup", Required: true, CollectionId: meetups.Id, MaxSelect: 1, CascadeDelete: true},
			&core.RelationField{Name: "user", Required: true, CollectionId: users.Id, MaxSelect: 1, CascadeDelete: true},
			&core.TextField{Name: "status", Max: 50},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		// One membership row per user per meetup; the database backstops the
		// application-level idempotency check.
		collection.AddIndex("idx_members_meetup_user", true, "meetup, user", "")
		collection.AddIndex("idx_members_meetup", false, "meetup", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("members")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
