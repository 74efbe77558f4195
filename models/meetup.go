package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MeetupStatus string

const (
	MeetupStatusUpcoming        MeetupStatus = "UPCOMING"
	MeetupStatusOngoing         MeetupStatus = "ONGOING"
	MeetupStatusPendingApproval MeetupStatus = "PENDING_APPROVAL"
	MeetupStatusRejected        MeetupStatus = "REJECTED"
	MeetupStatusCompleted       MeetupStatus = "COMPLETED"
	MeetupStatusCancelled       MeetupStatus = "CANCELLED"
)

// DiscoverableStatuses is the default status filter for listing: rejected and
// pending meetups are never shown to general discovery.
var DiscoverableStatuses = []MeetupStatus{MeetupStatusUpcoming, MeetupStatusOngoing}

type VenueApprovalStatus string

const (
	VenueApprovalNone     VenueApprovalStatus = ""
	VenueApprovalPending  VenueApprovalStatus = "pending"
	VenueApprovalApproved VenueApprovalStatus = "approved"
	VenueApprovalRejected VenueApprovalStatus = "rejected"
)

type MeetupType string

const (
	MeetupTypeActivity MeetupType = "activity"
	MeetupTypeEvent    MeetupType = "event"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Coordinates is a nullable lat/lng pair. A meetup without coordinates keeps
// the pointer nil rather than defaulting to (0,0).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Meetup struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Image       string     `json:"image,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`

	// MaxAttendees is nil when the meetup is unbounded.
	MaxAttendees *int `json:"max_attendees,omitempty"`

	Category    string       `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Location    string       `json:"location,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	CreatorID  string     `json:"creator_id"`
	VenueID    string     `json:"venue_id,omitempty"`
	Visibility Visibility `json:"visibility"`

	IsFree         bool            `json:"is_free"`
	PricePerPerson decimal.Decimal `json:"price_per_person"`

	IsBlindMeet bool       `json:"is_blind_meet"`
	Type        MeetupType `json:"type"`

	Status MeetupStatus `json:"status"`

	VenueApprovalStatus  VenueApprovalStatus `json:"venue_approval_status,omitempty"`
	VenueApprovedPrice   *decimal.Decimal    `json:"venue_approved_price,omitempty"`
	VenueRejectionReason string              `json:"venue_rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Relational projections, same shape on every endpoint.
	Creator     *UserSummary  `json:"creator,omitempty"`
	Venue       *VenueSummary `json:"venue,omitempty"`
	Members     []*Member     `json:"members,omitempty"`
	MemberCount int           `json:"member_count"`

	// DistanceKm is attached by discovery when the query carries a geo filter
	// and the meetup has coordinates.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// HasVenue reports whether the meetup targets a registered venue and is
// therefore subject to the venue-approval sub-state machine.
func (m *Meetup) HasVenue() bool {
	return m.VenueID != ""
}

// HasPhysicalLocation reports whether joining the meetup warrants a ticket:
// a registered venue, explicit coordinates, or a free-text location string.
func (m *Meetup) HasPhysicalLocation() bool {
	return m.VenueID != "" || m.Coordinates != nil || m.Location != ""
}

// EffectivePrice is venueApprovedPrice when the venue has set one, otherwise
// pricePerPerson. Zero for meetups with no price at all.
func (m *Meetup) EffectivePrice() decimal.Decimal {
	if m.VenueApprovedPrice != nil {
		return *m.VenueApprovedPrice
	}
	return m.PricePerPerson
}

type UserSummary struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}

type VenueSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Image       string  `json:"image,omitempty"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}
