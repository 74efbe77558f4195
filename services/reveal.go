package services

import (
	"time"

	"meetup-system/models"
)

// DefaultRevealWindow is how long before start time a blind meetup's
// identities become visible.
const DefaultRevealWindow = 2 * time.Hour

// Placeholders substituted for concealed fields. Presentation layers render
// them as-is.
const (
	concealedName     = "Hidden until reveal"
	concealedLocation = "Revealed closer to start"
)

// RevealAt returns the instant a blind meetup's identities become visible.
// Shared by every endpoint that embeds a meetup so the boundary cannot drift.
func RevealAt(startTime time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultRevealWindow
	}
	return startTime.Add(-window)
}

// ShouldReveal reports whether host and attendee identities may be shown.
// Non-blind meetups always reveal.
func ShouldReveal(m *models.Meetup, now time.Time, window time.Duration) bool {
	if !m.IsBlindMeet {
		return true
	}
	return !now.Before(RevealAt(m.StartTime, window))
}

// Conceal masks creator identity, attendee identities and the precise
// location in place. Member count survives; precise coordinates do not.
func Conceal(m *models.Meetup) {
	m.CreatorID = ""
	if m.Creator != nil {
		m.Creator = &models.UserSummary{DisplayName: concealedName}
	}
	for i, member := range m.Members {
		masked := *member
		masked.UserID = ""
		masked.User = &models.UserSummary{DisplayName: concealedName}
		m.Members[i] = &masked
	}

	m.Location = concealedLocation
	m.Coordinates = nil
	if m.Venue != nil {
		m.Venue = &models.VenueSummary{Name: concealedLocation, City: m.Venue.City}
	}
}

// ConcealIfHidden applies Conceal unless the viewer is the creator or the
// reveal boundary has passed.
func ConcealIfHidden(m *models.Meetup, viewerID string, now time.Time, window time.Duration) {
	if m == nil {
		return
	}
	if viewerID != "" && viewerID == m.CreatorID {
		return
	}
	if !ShouldReveal(m, now, window) {
		Conceal(m)
	}
}
