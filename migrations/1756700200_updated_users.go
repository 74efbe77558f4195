package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Profile fields surfaced in member and creator summaries.
func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection.Fields.Add(
			&core.TextField{Name: "first_name", Max: 100},
			&core.TextField{Name: "last_name", Max: 100},
			&core.TextField{Name: "display_name", Max: 150},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		for _, name := range []string{"first_name", "last_name", "display_name"} {
			collection.Fields.RemoveByName(name)
		}
		return app.Save(collection)
	})
}
