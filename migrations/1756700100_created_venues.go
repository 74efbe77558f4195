package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Venues authenticate like users so a venue account can work its own
// approval queue.
func init() {
	m.Register(func(app core.App) error {
		collection := core.NewAuthCollection("venues")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true, Max: 200},
			&core.TextField{Name: "address", Max: 500},
			&core.TextField{Name: "city", Max: 100},
			&core.TextField{Name: "image", Max: 500},
			&core.NumberField{Name: "rating", Min: types.Pointer(0.0), Max: types.Pointer(5.0)},
			&core.NumberField{Name: "review_count", OnlyInt: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("venues")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
