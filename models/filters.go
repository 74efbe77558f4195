package models

// GeoFilter narrows a listing to meetups around a point. RadiusKm must be
// positive; discovery substitutes its configured default when zero.
type GeoFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// ListFilters is the typed filter object for discovery queries. Nil/empty
// fields mean "no filter"; Search is a pointer so an empty search term can be
// distinguished from an absent one.
type ListFilters struct {
	Category string
	Statuses []MeetupStatus
	Search   *string
	Geo      *GeoFilter
}
