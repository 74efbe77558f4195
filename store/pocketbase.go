package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meetup-system/internal/status"
	"meetup-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const (
	collMeetups = "meetups"
	collMembers = "members"
	collTickets = "tickets"
	collVenues  = "venues"
	collUsers   = "users"
)

// PocketBase implements Store on top of the embedded PocketBase collections.
// SQLite serializes writers, so WithTx gives the per-meetup
// check-then-insert the atomicity the capacity invariant needs.
type PocketBase struct {
	app core.App
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

func (s *PocketBase) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PocketBase{app: txApp})
	})
}

// --- meetups ---

func (s *PocketBase) CreateMeetup(_ context.Context, m *models.Meetup) error {
	collection, err := s.app.FindCollectionByNameOrId(collMeetups)
	if err != nil {
		return fmt.Errorf("find meetups collection: %w", err)
	}

	record := core.NewRecord(collection)
	applyMeetup(record, m)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("create meetup: %w", err)
	}

	m.ID = record.Id
	m.CreatedAt = record.GetDateTime("created").Time()
	return nil
}

func (s *PocketBase) GetMeetup(_ context.Context, id string) (*models.Meetup, error) {
	record, err := s.app.FindRecordById(collMeetups, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.NotFound("meetup")
		}
		return nil, fmt.Errorf("get meetup: %w", err)
	}
	return meetupFromRecord(record), nil
}

func (s *PocketBase) SaveMeetup(_ context.Context, m *models.Meetup) error {
	record, err := s.app.FindRecordById(collMeetups, m.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.NotFound("meetup")
		}
		return fmt.Errorf("save meetup: %w", err)
	}

	applyMeetup(record, m)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("save meetup: %w", err)
	}
	return nil
}

func (s *PocketBase) DeleteMeetup(_ context.Context, id string) error {
	record, err := s.app.FindRecordById(collMeetups, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.NotFound("meetup")
		}
		return fmt.Errorf("delete meetup: %w", err)
	}

	// Members and tickets cascade via their relation fields.
	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("delete meetup: %w", err)
	}
	return nil
}

func (s *PocketBase) ListMeetups(_ context.Context, q MeetupQuery) ([]*models.Meetup, error) {
	query := s.app.RecordQuery(collMeetups)

	if q.Category != "" {
		query.AndWhere(dbx.HashExp{"category": q.Category})
	}
	if q.VenueID != "" {
		query.AndWhere(dbx.HashExp{"venue": q.VenueID})
	}
	if len(q.Statuses) > 0 {
		vals := make([]any, len(q.Statuses))
		for i, st := range q.Statuses {
			vals[i] = string(st)
		}
		query.AndWhere(dbx.In("status", vals...))
	}
	if q.Box != nil {
		// Rows without coordinates pass the prefilter; discovery decides
		// where they rank.
		query.AndWhere(dbx.Or(
			dbx.NewExp("coordinates = '' OR coordinates IS NULL OR coordinates = 'null'"),
			dbx.And(
				dbx.NewExp(
					"json_extract(coordinates, '$.lat') BETWEEN {:minLat} AND {:maxLat}",
					dbx.Params{"minLat": q.Box.MinLat, "maxLat": q.Box.MaxLat},
				),
				dbx.NewExp(
					"json_extract(coordinates, '$.lng') BETWEEN {:minLng} AND {:maxLng}",
					dbx.Params{"minLng": q.Box.MinLng, "maxLng": q.Box.MaxLng},
				),
			),
		))
	}

	query.OrderBy("start_time ASC")

	records := []*core.Record{}
	if err := query.All(&records); err != nil {
		return nil, fmt.Errorf("list meetups: %w", err)
	}

	meetups := make([]*models.Meetup, len(records))
	for i, record := range records {
		meetups[i] = meetupFromRecord(record)
	}
	return meetups, nil
}

// --- members ---

func (s *PocketBase) GetMember(_ context.Context, meetupID, userID string) (*models.Member, error) {
	record, err := s.app.FindFirstRecordByFilter(
		collMembers,
		"meetup = {:meetup} && user = {:user}",
		dbx.Params{"meetup": meetupID, "user": userID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return memberFromRecord(record), nil
}

func (s *PocketBase) ListMembers(_ context.Context, meetupID string) ([]*models.Member, error) {
	records, err := s.app.FindRecordsByFilter(
		collMembers,
		"meetup = {:meetup}",
		"created",
		0,
		0,
		dbx.Params{"meetup": meetupID},
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	members := make([]*models.Member, len(records))
	for i, record := range records {
		members[i] = memberFromRecord(record)
	}
	return members, nil
}

func (s *PocketBase) CountMembers(_ context.Context, meetupID string) (int, error) {
	total, err := s.app.CountRecords(collMembers, dbx.HashExp{"meetup": meetupID})
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return int(total), nil
}

func (s *PocketBase) CreateMember(_ context.Context, member *models.Member) error {
	collection, err := s.app.FindCollectionByNameOrId(collMembers)
	if err != nil {
		return fmt.Errorf("find members collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("meetup", member.MeetupID)
	record.Set("user", member.UserID)
	record.Set("status", member.Status)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("create member: %w", err)
	}

	member.ID = record.Id
	member.JoinedAt = record.GetDateTime("created").Time()
	return nil
}

func (s *PocketBase) SaveMember(_ context.Context, member *models.Member) error {
	record, err := s.app.FindRecordById(collMembers, member.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.NotFound("member")
		}
		return fmt.Errorf("save member: %w", err)
	}

	record.Set("status", member.Status)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	return nil
}

func (s *PocketBase) DeleteMember(_ context.Context, memberID string) error {
	record, err := s.app.FindRecordById(collMembers, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.NotFound("member")
		}
		return fmt.Errorf("delete member: %w", err)
	}

	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// --- tickets ---

func (s *PocketBase) CreateTicket(_ context.Context, t *models.Ticket) error {
	collection, err := s.app.FindCollectionByNameOrId(collTickets)
	if err != nil {
		return fmt.Errorf("find tickets collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("meetup", t.MeetupID)
	record.Set("member", t.MemberID)
	record.Set("user", t.UserID)
	record.Set("number", t.Number)
	record.Set("qr_payload", t.QRPayload)
	record.Set("price", t.Price.InexactFloat64())
	record.Set("status", string(t.Status))
	record.Set("expires_at", toDateTime(t.ExpiresAt))
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}

	t.ID = record.Id
	t.CreatedAt = record.GetDateTime("created").Time()
	return nil
}

func (s *PocketBase) SaveTicket(_ context.Context, t *models.Ticket) error {
	record, err := s.app.FindRecordById(collTickets, t.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.NotFound("ticket")
		}
		return fmt.Errorf("save ticket: %w", err)
	}

	record.Set("status", string(t.Status))
	record.Set("expires_at", toDateTime(t.ExpiresAt))
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("save ticket: %w", err)
	}
	return nil
}

func (s *PocketBase) FindTicketByMember(_ context.Context, memberID string) (*models.Ticket, error) {
	record, err := s.app.FindFirstRecordByFilter(
		collTickets,
		"member = {:member}",
		dbx.Params{"member": memberID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return ticketFromRecord(record), nil
}

func (s *PocketBase) FindTicketByUser(_ context.Context, meetupID, userID string) (*models.Ticket, error) {
	record, err := s.app.FindFirstRecordByFilter(
		collTickets,
		"meetup = {:meetup} && user = {:user}",
		dbx.Params{"meetup": meetupID, "user": userID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return ticketFromRecord(record), nil
}

// --- summaries ---

func (s *PocketBase) UserSummary(_ context.Context, userID string) (*models.UserSummary, error) {
	record, err := s.app.FindRecordById(collUsers, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user summary: %w", err)
	}

	return &models.UserSummary{
		ID:          record.Id,
		FirstName:   record.GetString("first_name"),
		LastName:    record.GetString("last_name"),
		DisplayName: record.GetString("display_name"),
		Avatar:      record.GetString("avatar"),
	}, nil
}

func (s *PocketBase) VenueSummary(_ context.Context, venueID string) (*models.VenueSummary, error) {
	record, err := s.app.FindRecordById(collVenues, venueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("venue summary: %w", err)
	}

	return &models.VenueSummary{
		ID:          record.Id,
		Name:        record.GetString("name"),
		Address:     record.GetString("address"),
		City:        record.GetString("city"),
		Image:       record.GetString("image"),
		Rating:      record.GetFloat("rating"),
		ReviewCount: record.GetInt("review_count"),
	}, nil
}

// --- record mapping ---

func applyMeetup(record *core.Record, m *models.Meetup) {
	record.Set("title", m.Title)
	record.Set("description", m.Description)
	record.Set("image", m.Image)
	record.Set("start_time", toDateTime(m.StartTime))
	if m.EndTime != nil {
		record.Set("end_time", toDateTime(*m.EndTime))
	} else {
		record.Set("end_time", "")
	}
	if m.MaxAttendees != nil {
		record.Set("max_attendees", *m.MaxAttendees)
	} else {
		record.Set("max_attendees", 0)
	}
	record.Set("category", m.Category)
	record.Set("tags", m.Tags)
	record.Set("location", m.Location)
	if m.Coordinates != nil {
		record.Set("coordinates", m.Coordinates)
	} else {
		record.Set("coordinates", nil)
	}
	record.Set("creator", m.CreatorID)
	record.Set("venue", m.VenueID)
	record.Set("visibility", string(m.Visibility))
	record.Set("is_free", m.IsFree)
	record.Set("price_per_person", m.PricePerPerson.InexactFloat64())
	record.Set("is_blind_meet", m.IsBlindMeet)
	record.Set("type", string(m.Type))
	record.Set("status", string(m.Status))
	record.Set("venue_approval_status", string(m.VenueApprovalStatus))
	if m.VenueApprovedPrice != nil {
		record.Set("venue_approved_price", m.VenueApprovedPrice.InexactFloat64())
	} else {
		record.Set("venue_approved_price", 0)
	}
	record.Set("venue_rejection_reason", m.VenueRejectionReason)
}

func meetupFromRecord(record *core.Record) *models.Meetup {
	m := &models.Meetup{
		ID:                   record.Id,
		Title:                record.GetString("title"),
		Description:          record.GetString("description"),
		Image:                record.GetString("image"),
		StartTime:            record.GetDateTime("start_time").Time(),
		Category:             record.GetString("category"),
		Tags:                 record.GetStringSlice("tags"),
		Location:             record.GetString("location"),
		CreatorID:            record.GetString("creator"),
		VenueID:              record.GetString("venue"),
		Visibility:           models.Visibility(record.GetString("visibility")),
		IsFree:               record.GetBool("is_free"),
		PricePerPerson:       decimal.NewFromFloat(record.GetFloat("price_per_person")),
		IsBlindMeet:          record.GetBool("is_blind_meet"),
		Type:                 models.MeetupType(record.GetString("type")),
		Status:               models.MeetupStatus(record.GetString("status")),
		VenueApprovalStatus:  models.VenueApprovalStatus(record.GetString("venue_approval_status")),
		VenueRejectionReason: record.GetString("venue_rejection_reason"),
		CreatedAt:            record.GetDateTime("created").Time(),
	}

	if end := record.GetDateTime("end_time"); !end.IsZero() {
		t := end.Time()
		m.EndTime = &t
	}
	if max := record.GetInt("max_attendees"); max > 0 {
		m.MaxAttendees = &max
	}

	var coords *models.Coordinates
	if err := record.UnmarshalJSONField("coordinates", &coords); err == nil && coords != nil {
		m.Coordinates = coords
	}

	if m.VenueApprovalStatus == models.VenueApprovalApproved {
		price := decimal.NewFromFloat(record.GetFloat("venue_approved_price"))
		m.VenueApprovedPrice = &price
	}

	return m
}

func memberFromRecord(record *core.Record) *models.Member {
	return &models.Member{
		ID:       record.Id,
		MeetupID: record.GetString("meetup"),
		UserID:   record.GetString("user"),
		Status:   record.GetString("status"),
		JoinedAt: record.GetDateTime("created").Time(),
	}
}

func ticketFromRecord(record *core.Record) *models.Ticket {
	return &models.Ticket{
		ID:        record.Id,
		MeetupID:  record.GetString("meetup"),
		MemberID:  record.GetString("member"),
		UserID:    record.GetString("user"),
		Number:    record.GetString("number"),
		QRPayload: record.GetString("qr_payload"),
		Price:     decimal.NewFromFloat(record.GetFloat("price")),
		ExpiresAt: record.GetDateTime("expires_at").Time(),
		Status:    models.TicketStatus(record.GetString("status")),
		CreatedAt: record.GetDateTime("created").Time(),
	}
}

func toDateTime(t time.Time) types.DateTime {
	dt, _ := types.ParseDateTime(t)
	return dt
}
