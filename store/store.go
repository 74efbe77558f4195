package store

import (
	"context"

	"meetup-system/models"
	"meetup-system/utils"
)

// MeetupQuery narrows a meetup listing at the storage layer. The bounding box
// is a sargable prefilter only: rows without coordinates always pass it, and
// the caller applies the exact distance check afterwards.
type MeetupQuery struct {
	Category string
	Statuses []models.MeetupStatus
	VenueID  string
	Box      *utils.Box
}

// Store is the only component allowed to mutate the Meetup/Member/Ticket
// entity graph. WithTx scopes a read-modify-write sequence to one storage
// transaction; every multi-step mutation in the services runs inside it so a
// failed precondition aborts before any write.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateMeetup(ctx context.Context, m *models.Meetup) error
	GetMeetup(ctx context.Context, id string) (*models.Meetup, error)
	SaveMeetup(ctx context.Context, m *models.Meetup) error
	DeleteMeetup(ctx context.Context, id string) error
	ListMeetups(ctx context.Context, q MeetupQuery) ([]*models.Meetup, error)

	// GetMember returns (nil, nil) when the user has no member row.
	GetMember(ctx context.Context, meetupID, userID string) (*models.Member, error)
	ListMembers(ctx context.Context, meetupID string) ([]*models.Member, error)
	CountMembers(ctx context.Context, meetupID string) (int, error)
	CreateMember(ctx context.Context, member *models.Member) error
	SaveMember(ctx context.Context, member *models.Member) error
	DeleteMember(ctx context.Context, memberID string) error

	CreateTicket(ctx context.Context, t *models.Ticket) error
	SaveTicket(ctx context.Context, t *models.Ticket) error
	// FindTicketByMember returns (nil, nil) when the member holds no ticket.
	FindTicketByMember(ctx context.Context, memberID string) (*models.Ticket, error)
	// FindTicketByUser finds the user's ticket for a meetup regardless of the
	// membership row it was issued under. (nil, nil) when absent.
	FindTicketByUser(ctx context.Context, meetupID, userID string) (*models.Ticket, error)

	// Summaries return (nil, nil) when the referenced record is absent.
	UserSummary(ctx context.Context, userID string) (*models.UserSummary, error)
	VenueSummary(ctx context.Context, venueID string) (*models.VenueSummary, error)
}
