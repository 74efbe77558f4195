package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meetup-system/internal/status"
	"meetup-system/models"
	"meetup-system/monitoring"
	"meetup-system/store"

	"github.com/shopspring/decimal"
)

// Approval decision actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// MeetupService owns the meetup status state machine and the venue-approval
// sub-state machine. Every transition is validated and applied inside one
// store transaction; notifications go out only after the commit.
type MeetupService struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time
}

func NewMeetupService(st store.Store, notifier Notifier) *MeetupService {
	return &MeetupService{
		store:    st,
		notifier: notifier,
		now:      time.Now,
	}
}

type CreateMeetupInput struct {
	Title          string
	Description    string
	Image          string
	StartTime      time.Time
	EndTime        *time.Time
	MaxAttendees   *int
	Category       string
	Tags           []string
	Location       string
	Coordinates    *models.Coordinates
	CreatorID      string
	VenueID        string
	Visibility     models.Visibility
	IsFree         bool
	PricePerPerson decimal.Decimal
	IsBlindMeet    bool
	Type           models.MeetupType
}

// Create persists a new meetup. Meetups targeting a registered venue start in
// PENDING_APPROVAL and stay invisible to discovery until the venue decides.
func (s *MeetupService) Create(ctx context.Context, in CreateMeetupInput) (*models.Meetup, error) {
	if err := validateCreate(in); err != nil {
		monitoring.TrackMeetupOperation("create", "invalid")
		return nil, err
	}

	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}
	if in.Type == "" {
		in.Type = models.MeetupTypeActivity
	}

	m := &models.Meetup{
		Title:          in.Title,
		Description:    in.Description,
		Image:          in.Image,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		MaxAttendees:   in.MaxAttendees,
		Category:       in.Category,
		Tags:           in.Tags,
		Location:       in.Location,
		Coordinates:    in.Coordinates,
		CreatorID:      in.CreatorID,
		VenueID:        in.VenueID,
		Visibility:     in.Visibility,
		IsFree:         in.IsFree,
		PricePerPerson: in.PricePerPerson,
		IsBlindMeet:    in.IsBlindMeet,
		Type:           in.Type,
		Status:         models.MeetupStatusUpcoming,
	}
	if m.HasVenue() {
		m.Status = models.MeetupStatusPendingApproval
		m.VenueApprovalStatus = models.VenueApprovalPending
	}

	if err := s.store.CreateMeetup(ctx, m); err != nil {
		monitoring.TrackMeetupOperation("create", "error")
		return nil, err
	}
	monitoring.TrackMeetupOperation("create", "ok")

	if m.HasVenue() {
		s.notifier.Notify(ctx, m.VenueID, EventApprovalRequested, map[string]any{
			"meetup_id":    m.ID,
			"meetup_title": m.Title,
			"price":        m.PricePerPerson.String(),
		})
	}

	s.loadProjectionsOrLog(ctx, m)
	m.Members = []*models.Member{}
	return m, nil
}

func validateCreate(in CreateMeetupInput) error {
	if in.Title == "" {
		return status.Validation("title is required")
	}
	if in.StartTime.IsZero() {
		return status.Validation("start time is required")
	}
	if in.CreatorID == "" {
		return status.Validation("creator is required")
	}
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return status.Validation("end time precedes start time")
	}
	if in.MaxAttendees != nil && *in.MaxAttendees <= 0 {
		return status.Validation("max attendees must be positive")
	}
	if in.PricePerPerson.IsNegative() {
		return status.Validation("price per person must not be negative")
	}
	if in.Type != "" && in.Type != models.MeetupTypeActivity && in.Type != models.MeetupTypeEvent {
		return status.Validation("unknown meetup type %q", in.Type)
	}
	return nil
}

// ApproveOrReject applies the venue's decision. Preconditions are checked in
// order (exists, actor is the target venue, state is exactly
// PENDING_APPROVAL) so concurrent double-decisions fail on the state check.
func (s *MeetupService) ApproveOrReject(ctx context.Context, meetupID, actorID, action string, approvedPrice *decimal.Decimal, rejectionReason string) (*models.Meetup, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, status.Validation("unknown action %q", action)
	}
	if approvedPrice != nil && approvedPrice.IsNegative() {
		return nil, status.Validation("approved price must not be negative")
	}

	var m *models.Meetup
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		m, err = tx.GetMeetup(ctx, meetupID)
		if err != nil {
			return err
		}
		if m.VenueID == "" || actorID != m.VenueID {
			return fmt.Errorf("%w: only the requested venue may decide", status.ErrUnauthorized)
		}
		if m.Status != models.MeetupStatusPendingApproval {
			return status.Invalid(fmt.Sprintf("meetup is %s, not awaiting approval", m.Status))
		}

		if action == ActionApprove {
			price := m.PricePerPerson
			if approvedPrice != nil {
				price = *approvedPrice
			}
			// The approved price becomes authoritative.
			m.VenueApprovedPrice = &price
			m.PricePerPerson = price
			m.Status = models.MeetupStatusUpcoming
			m.VenueApprovalStatus = models.VenueApprovalApproved
			m.VenueRejectionReason = ""
		} else {
			m.Status = models.MeetupStatusRejected
			m.VenueApprovalStatus = models.VenueApprovalRejected
			m.VenueRejectionReason = rejectionReason
			m.VenueApprovedPrice = nil
		}

		return tx.SaveMeetup(ctx, m)
	})
	if err != nil {
		monitoring.TrackMeetupOperation(action, "error")
		return nil, err
	}
	monitoring.TrackMeetupOperation(action, "ok")

	event := EventMeetupApproved
	payload := map[string]any{
		"meetup_id":    m.ID,
		"meetup_title": m.Title,
	}
	if action == ActionReject {
		event = EventMeetupRejected
		payload["reason"] = rejectionReason
	} else {
		payload["approved_price"] = m.PricePerPerson.String()
	}
	s.notifier.Notify(ctx, m.CreatorID, event, payload)

	s.loadProjectionsOrLog(ctx, m)
	return m, nil
}

type UpdateMeetupPatch struct {
	Title          *string
	Description    *string
	Image          *string
	StartTime      *time.Time
	EndTime        *time.Time
	MaxAttendees   *int
	Category       *string
	Tags           []string
	Location       *string
	Coordinates    *models.Coordinates
	VenueID        *string
	Visibility     *models.Visibility
	IsFree         *bool
	PricePerPerson *decimal.Decimal
	IsBlindMeet    *bool
	Type           *models.MeetupType
}

// Update applies a partial patch; absent fields keep their prior value. The
// re-approval rule is computed before the patch is applied and applied as a
// distinct transition afterwards, never as a side effect of field copying.
func (s *MeetupService) Update(ctx context.Context, meetupID, actorID string, patch UpdateMeetupPatch) (*models.Meetup, error) {
	if patch.PricePerPerson != nil && patch.PricePerPerson.IsNegative() {
		return nil, status.Validation("price per person must not be negative")
	}
	if patch.MaxAttendees != nil && *patch.MaxAttendees <= 0 {
		return nil, status.Validation("max attendees must be positive")
	}

	var m *models.Meetup
	var reapproval bool
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		m, err = tx.GetMeetup(ctx, meetupID)
		if err != nil {
			return err
		}
		if actorID != m.CreatorID {
			return fmt.Errorf("%w: only the creator may update", status.ErrUnauthorized)
		}

		priceChanged := patch.PricePerPerson != nil && !patch.PricePerPerson.Equal(m.PricePerPerson)
		venueChanged := patch.VenueID != nil && *patch.VenueID != m.VenueID

		applyPatch(m, patch)

		// The patched start/end pair must stay ordered even when only one
		// side moved.
		if m.EndTime != nil && m.EndTime.Before(m.StartTime) {
			return status.Validation("end time precedes start time")
		}

		reapproval = s.requireVenueApproval(m, priceChanged, venueChanged)

		return tx.SaveMeetup(ctx, m)
	})
	if err != nil {
		monitoring.TrackMeetupOperation("update", "error")
		return nil, err
	}
	monitoring.TrackMeetupOperation("update", "ok")

	if reapproval {
		s.notifier.Notify(ctx, m.VenueID, EventApprovalRequested, map[string]any{
			"meetup_id":    m.ID,
			"meetup_title": m.Title,
			"price":        m.PricePerPerson.String(),
		})
	}

	s.loadProjectionsOrLog(ctx, m)
	return m, nil
}

func applyPatch(m *models.Meetup, patch UpdateMeetupPatch) {
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Image != nil {
		m.Image = *patch.Image
	}
	if patch.StartTime != nil {
		m.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		m.EndTime = patch.EndTime
	}
	if patch.MaxAttendees != nil {
		m.MaxAttendees = patch.MaxAttendees
	}
	if patch.Category != nil {
		m.Category = *patch.Category
	}
	if patch.Tags != nil {
		m.Tags = patch.Tags
	}
	if patch.Location != nil {
		m.Location = *patch.Location
	}
	if patch.Coordinates != nil {
		m.Coordinates = patch.Coordinates
	}
	if patch.VenueID != nil {
		m.VenueID = *patch.VenueID
	}
	if patch.Visibility != nil {
		m.Visibility = *patch.Visibility
	}
	if patch.IsFree != nil {
		m.IsFree = *patch.IsFree
	}
	if patch.PricePerPerson != nil {
		m.PricePerPerson = *patch.PricePerPerson
	}
	if patch.IsBlindMeet != nil {
		m.IsBlindMeet = *patch.IsBlindMeet
	}
	if patch.Type != nil {
		m.Type = *patch.Type
	}
}

// requireVenueApproval is the named re-approval transition. Price is the
// venue's chief approval criterion, so any price change re-enters the
// approval flow; switching venues does too, including from REJECTED
// ("request a different venue"). Removing the venue normalizes a meetup
// stuck in an approval state back to UPCOMING.
func (s *MeetupService) requireVenueApproval(m *models.Meetup, priceChanged, venueChanged bool) bool {
	if !m.HasVenue() {
		if m.Status == models.MeetupStatusPendingApproval || m.Status == models.MeetupStatusRejected {
			m.Status = models.MeetupStatusUpcoming
			m.VenueApprovalStatus = models.VenueApprovalNone
			m.VenueApprovedPrice = nil
			m.VenueRejectionReason = ""
		}
		return false
	}

	if !priceChanged && !venueChanged {
		return false
	}

	m.Status = models.MeetupStatusPendingApproval
	m.VenueApprovalStatus = models.VenueApprovalPending
	m.VenueApprovedPrice = nil
	m.VenueRejectionReason = ""
	return true
}

// Delete removes the meetup and, through the store, its members and tickets.
func (s *MeetupService) Delete(ctx context.Context, meetupID, actorID string) error {
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		m, err := tx.GetMeetup(ctx, meetupID)
		if err != nil {
			return err
		}
		if actorID != m.CreatorID {
			return fmt.Errorf("%w: only the creator may delete", status.ErrUnauthorized)
		}
		return tx.DeleteMeetup(ctx, meetupID)
	})
	if err != nil {
		monitoring.TrackMeetupOperation("delete", "error")
		return err
	}
	monitoring.TrackMeetupOperation("delete", "ok")
	return nil
}

// Get returns the meetup with its full relational projection.
func (s *MeetupService) Get(ctx context.Context, meetupID string) (*models.Meetup, error) {
	m, err := s.store.GetMeetup(ctx, meetupID)
	if err != nil {
		return nil, err
	}
	if err := s.loadProjections(ctx, m, true); err != nil {
		return nil, err
	}
	return m, nil
}

// ListPendingForVenue returns the approval queue for a venue.
func (s *MeetupService) ListPendingForVenue(ctx context.Context, venueID string) ([]*models.Meetup, error) {
	meetups, err := s.store.ListMeetups(ctx, store.MeetupQuery{
		VenueID:  venueID,
		Statuses: []models.MeetupStatus{models.MeetupStatusPendingApproval},
	})
	if err != nil {
		return nil, err
	}
	for _, m := range meetups {
		if err := s.loadProjections(ctx, m, false); err != nil {
			return nil, err
		}
	}
	return meetups, nil
}

// loadProjectionsOrLog decorates a meetup whose state change already
// committed. A summary lookup failure must not turn the succeeded operation
// into an error response, so it is logged and the meetup returned with
// whatever projections did load.
func (s *MeetupService) loadProjectionsOrLog(ctx context.Context, m *models.Meetup) {
	if err := s.loadProjections(ctx, m, false); err != nil {
		slog.Error("meetup summary load failed", "meetup_id", m.ID, "error", err)
	}
}

// loadProjections attaches the creator/venue summaries (same shape on every
// endpoint) and either the embedded member list or just the count.
func (s *MeetupService) loadProjections(ctx context.Context, m *models.Meetup, withMembers bool) error {
	creator, err := s.store.UserSummary(ctx, m.CreatorID)
	if err != nil {
		return err
	}
	m.Creator = creator

	if m.HasVenue() {
		venue, err := s.store.VenueSummary(ctx, m.VenueID)
		if err != nil {
			return err
		}
		m.Venue = venue
	}

	if withMembers {
		members, err := s.store.ListMembers(ctx, m.ID)
		if err != nil {
			return err
		}
		for _, member := range members {
			user, err := s.store.UserSummary(ctx, member.UserID)
			if err != nil {
				return err
			}
			member.User = user
		}
		m.Members = members
		m.MemberCount = len(members)
		return nil
	}

	count, err := s.store.CountMembers(ctx, m.ID)
	if err != nil {
		return err
	}
	m.MemberCount = count
	return nil
}
