package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"meetup-system/internal/status"
	"meetup-system/models"
	"meetup-system/monitoring"
	"meetup-system/store"
	"meetup-system/utils"
)

// DiscoveryService answers listing and nearby queries. Geo filtering is two
// phased: a bounding-box prefilter in the store narrows candidates, then the
// exact haversine distance decides inclusion and ordering. Rows without
// coordinates survive both phases and sort after everything with a distance.
type DiscoveryService struct {
	store           store.Store
	defaultRadiusKm float64
	revealWindow    time.Duration
	now             func() time.Time
}

func NewDiscoveryService(st store.Store, defaultRadiusKm float64, revealWindow time.Duration) *DiscoveryService {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 10
	}
	if revealWindow <= 0 {
		revealWindow = DefaultRevealWindow
	}
	return &DiscoveryService{
		store:           st,
		defaultRadiusKm: defaultRadiusKm,
		revealWindow:    revealWindow,
		now:             time.Now,
	}
}

// List returns discoverable meetups matching the filters. Without an explicit
// status filter only UPCOMING and ONGOING meetups are returned, which keeps
// PENDING_APPROVAL and REJECTED meetups out of every feed.
func (l *DiscoveryService) List(ctx context.Context, filters models.ListFilters, viewerID string) ([]*models.Meetup, error) {
	start := time.Now()
	defer func() { monitoring.TrackDiscovery("list", time.Since(start)) }()

	statuses := filters.Statuses
	if len(statuses) == 0 {
		statuses = models.DiscoverableStatuses
	}

	query := store.MeetupQuery{
		Category: filters.Category,
		Statuses: statuses,
	}

	var geo *models.GeoFilter
	if filters.Geo != nil {
		geo = &models.GeoFilter{Lat: filters.Geo.Lat, Lng: filters.Geo.Lng, RadiusKm: filters.Geo.RadiusKm}
		if geo.RadiusKm <= 0 {
			geo.RadiusKm = l.defaultRadiusKm
		}
		box := utils.BoundingBox(geo.Lat, geo.Lng, geo.RadiusKm)
		query.Box = &box
	}

	meetups, err := l.store.ListMeetups(ctx, query)
	if err != nil {
		return nil, err
	}

	if filters.Search != nil && *filters.Search != "" {
		meetups = filterBySearch(meetups, *filters.Search)
	}
	if geo != nil {
		meetups = rankByDistance(meetups, geo)
	}

	now := l.now()
	for _, m := range meetups {
		count, err := l.store.CountMembers(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		m.MemberCount = count
		ConcealIfHidden(m, viewerID, now, l.revealWindow)
	}
	return meetups, nil
}

// Nearby is the geo-first entry point. Latitude and longitude are mandatory;
// the radius falls back to the configured default. The feed only ever shows
// UPCOMING and ONGOING meetups, regardless of any status filter the caller
// supplies.
func (l *DiscoveryService) Nearby(ctx context.Context, lat, lng *float64, radiusKm float64, filters models.ListFilters, viewerID string) ([]*models.Meetup, error) {
	if lat == nil || lng == nil {
		return nil, status.Validation("lat and lng are required")
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return nil, status.Validation("coordinates out of range")
	}

	filters.Statuses = models.DiscoverableStatuses
	filters.Geo = &models.GeoFilter{Lat: *lat, Lng: *lng, RadiusKm: radiusKm}
	return l.List(ctx, filters, viewerID)
}

// filterBySearch keeps meetups whose title or description contains the term,
// case-insensitively.
func filterBySearch(meetups []*models.Meetup, term string) []*models.Meetup {
	term = strings.ToLower(term)
	out := meetups[:0]
	for _, m := range meetups {
		if strings.Contains(strings.ToLower(m.Title), term) ||
			strings.Contains(strings.ToLower(m.Description), term) {
			out = append(out, m)
		}
	}
	return out
}

// rankByDistance computes exact distances, drops located meetups outside the
// radius and sorts ascending. Meetups without coordinates get no distance and
// sort last, in their prior relative order.
func rankByDistance(meetups []*models.Meetup, geo *models.GeoFilter) []*models.Meetup {
	out := meetups[:0]
	for _, m := range meetups {
		if m.Coordinates == nil {
			m.DistanceKm = nil
			out = append(out, m)
			continue
		}
		d := utils.Distance(geo.Lat, geo.Lng, m.Coordinates.Lat, m.Coordinates.Lng)
		if d > geo.RadiusKm {
			continue
		}
		dist := d
		m.DistanceKm = &dist
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DistanceKm, out[j].DistanceKm
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
	return out
}
