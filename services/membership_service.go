package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetup-system/internal/status"
	"meetup-system/models"
	"meetup-system/monitoring"
	"meetup-system/store"
	"meetup-system/utils"
)

// MembershipService handles joins, leaves and ticket check-in. The capacity
// check and the member insert run in one transaction; the optional Redis lock
// on top serializes joins across instances when enabled.
type MembershipService struct {
	store    store.Store
	codec    utils.TicketCodec
	notifier Notifier
	lock     *utils.MeetupLock // nil when single-instance locking is off

	graceTTL    time.Duration // ticket validity past the meetup end time
	fallbackTTL time.Duration // ticket validity when no end time exists

	now func() time.Time
}

func NewMembershipService(st store.Store, codec utils.TicketCodec, notifier Notifier, lock *utils.MeetupLock, graceTTL, fallbackTTL time.Duration) *MembershipService {
	return &MembershipService{
		store:       st,
		codec:       codec,
		notifier:    notifier,
		lock:        lock,
		graceTTL:    graceTTL,
		fallbackTTL: fallbackTTL,
		now:         time.Now,
	}
}

// JoinResult pairs the membership row with the displayable ticket subset.
// Ticket is nil for meetups with no physical location.
type JoinResult struct {
	Member *models.Member     `json:"member"`
	Ticket *models.TicketView `json:"ticket,omitempty"`
}

// Join adds the user to the meetup and issues a ticket on first join.
// Joining a meetup the user already belongs to is an update in place: the
// attendance status moves to desiredStatus and the capacity check is not
// repeated. An empty desiredStatus means "going".
func (s *MembershipService) Join(ctx context.Context, meetupID, userID, desiredStatus string) (*JoinResult, error) {
	if desiredStatus == "" {
		desiredStatus = models.MemberStatusGoing
	}
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, meetupID)
		if err != nil {
			monitoring.TrackJoin("lock_timeout")
			return nil, err
		}
		defer release()
	}

	var result *JoinResult
	var rejoined bool
	var creatorID string
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		m, err := tx.GetMeetup(ctx, meetupID)
		if err != nil {
			return err
		}
		creatorID = m.CreatorID

		switch m.Status {
		case models.MeetupStatusPendingApproval:
			return status.Invalid(status.MsgPendingApproval)
		case models.MeetupStatusRejected:
			return status.Invalid(status.MsgRejectedByVenue)
		case models.MeetupStatusUpcoming, models.MeetupStatusOngoing:
		default:
			return status.Invalid(fmt.Sprintf("meetup is %s", m.Status))
		}

		existing, err := tx.GetMember(ctx, meetupID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			rejoined = true
			if existing.Status != desiredStatus {
				existing.Status = desiredStatus
				if err := tx.SaveMember(ctx, existing); err != nil {
					return err
				}
			}
			result = &JoinResult{Member: existing}
			ticket, err := tx.FindTicketByMember(ctx, existing.ID)
			if err != nil {
				return err
			}
			if ticket != nil {
				s.expireIfStale(ctx, tx, ticket)
				result.Ticket = ticket.View()
			}
			return nil
		}

		if m.MaxAttendees != nil {
			count, err := tx.CountMembers(ctx, meetupID)
			if err != nil {
				return err
			}
			if count >= *m.MaxAttendees {
				return status.ErrFull
			}
		}

		member := &models.Member{
			MeetupID: meetupID,
			UserID:   userID,
			Status:   desiredStatus,
			JoinedAt: s.now(),
		}
		if err := tx.CreateMember(ctx, member); err != nil {
			return err
		}
		result = &JoinResult{Member: member}

		if !m.HasPhysicalLocation() {
			return nil
		}

		// A ticket issued before an earlier leave still stands; rejoin churn
		// must not mint a second one.
		ticket, err := tx.FindTicketByUser(ctx, meetupID, userID)
		if err != nil {
			return err
		}
		if ticket != nil {
			s.expireIfStale(ctx, tx, ticket)
			result.Ticket = ticket.View()
			return nil
		}

		ticket, err = s.issueTicket(ctx, tx, m, member)
		if err != nil {
			return err
		}
		result.Ticket = ticket.View()
		return nil
	})
	if err != nil {
		monitoring.TrackJoin(joinFailureLabel(err))
		return nil, err
	}

	if rejoined {
		monitoring.TrackJoin("rejoined")
		return result, nil
	}
	monitoring.TrackJoin("joined")

	user, err := s.store.UserSummary(ctx, userID)
	if err == nil && user != nil {
		result.Member.User = user
	}
	if creatorID != "" && creatorID != userID {
		payload := map[string]any{
			"meetup_id": meetupID,
			"user_id":   userID,
		}
		if user != nil {
			payload["display_name"] = user.DisplayName
		}
		s.notifier.Notify(ctx, creatorID, EventMemberJoined, payload)
	}
	return result, nil
}

func joinFailureLabel(err error) string {
	switch {
	case errors.Is(err, status.ErrFull):
		return "full"
	case errors.Is(err, status.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, status.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *MembershipService) issueTicket(ctx context.Context, tx store.Store, m *models.Meetup, member *models.Member) (*models.Ticket, error) {
	payload, err := s.codec.Encode(member.ID, m.ID, member.UserID)
	if err != nil {
		return nil, fmt.Errorf("seal ticket payload: %w", err)
	}
	number, err := utils.GenerateTicketNumber()
	if err != nil {
		return nil, fmt.Errorf("generate ticket number: %w", err)
	}

	expiresAt := s.now().Add(s.fallbackTTL)
	if m.EndTime != nil {
		expiresAt = m.EndTime.Add(s.graceTTL)
	}

	ticket := &models.Ticket{
		MeetupID:  m.ID,
		MemberID:  member.ID,
		UserID:    member.UserID,
		Number:    number,
		QRPayload: payload,
		Price:     m.EffectivePrice(),
		ExpiresAt: expiresAt,
		Status:    models.TicketStatusActive,
	}
	if err := tx.CreateTicket(ctx, ticket); err != nil {
		return nil, err
	}
	monitoring.TicketIssued()
	return ticket, nil
}

// Leave removes the membership row. The ticket, if any, is left untouched so
// leave-and-rejoin churn cannot mint duplicate tickets.
func (s *MembershipService) Leave(ctx context.Context, meetupID, userID string) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetMeetup(ctx, meetupID); err != nil {
			return err
		}
		member, err := tx.GetMember(ctx, meetupID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return status.NotFound(status.MsgNotAMember)
		}
		return tx.DeleteMember(ctx, member.ID)
	})
}

// CheckIn validates a scanned QR payload and burns the ticket. The sealed
// payload carries the member/meetup/user triple, so no lookup beyond the
// ticket row itself is needed.
func (s *MembershipService) CheckIn(ctx context.Context, qrPayload string) (*models.Ticket, error) {
	ref, err := s.codec.Decode(qrPayload)
	if err != nil {
		return nil, status.Validation("unreadable ticket code")
	}

	var ticket *models.Ticket
	var refused error
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		ticket, err = tx.FindTicketByMember(ctx, ref.MemberID)
		if err != nil {
			return err
		}
		if ticket == nil || ticket.MeetupID != ref.MeetupID || ticket.UserID != ref.UserID {
			return status.NotFound("ticket")
		}

		// A refusal must not roll back the lazy expiry write, so refusals are
		// reported through refused rather than the transaction error.
		if ticket.Status == models.TicketStatusActive && s.now().After(ticket.ExpiresAt) {
			ticket.Status = models.TicketStatusExpired
			if err := tx.SaveTicket(ctx, ticket); err != nil {
				return err
			}
		}

		switch ticket.Status {
		case models.TicketStatusActive:
			ticket.Status = models.TicketStatusUsed
			return tx.SaveTicket(ctx, ticket)
		case models.TicketStatusUsed:
			refused = status.Invalid("ticket already used")
		case models.TicketStatusExpired:
			refused = status.Invalid("ticket expired")
		default:
			refused = status.Invalid("ticket cancelled")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refused != nil {
		return nil, refused
	}
	return ticket, nil
}

// expireIfStale flips an ACTIVE ticket past its expiry to EXPIRED at read
// time. Persistence failure is ignored; the caller still sees EXPIRED and the
// next read retries the write.
func (s *MembershipService) expireIfStale(ctx context.Context, tx store.Store, ticket *models.Ticket) {
	if ticket.Status != models.TicketStatusActive || !s.now().After(ticket.ExpiresAt) {
		return
	}
	ticket.Status = models.TicketStatusExpired
	_ = tx.SaveTicket(ctx, ticket)
}
