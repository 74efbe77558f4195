package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"meetup-system/internal/status"
	"meetup-system/models"
	"meetup-system/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMembershipFixture(t *testing.T) (*MembershipService, *MeetupService, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	st.addUser("alice", "Alice")
	st.addUser("bob", "Bob")
	st.addUser("carol", "Carol")
	st.addVenue("venue-1", "Cafe Nine", "Lisbon")

	codec, err := utils.NewSealedCodec("membership-test-secret")
	require.NoError(t, err)

	membership := NewMembershipService(st, codec, NopNotifier{}, nil, 24*time.Hour, 720*time.Hour)
	lifecycle := NewMeetupService(st, NopNotifier{})
	return membership, lifecycle, st
}

func createUpcoming(t *testing.T, lifecycle *MeetupService, mutate func(*CreateMeetupInput)) *models.Meetup {
	t.Helper()
	in := baseCreateInput()
	if mutate != nil {
		mutate(&in)
	}
	m, err := lifecycle.Create(context.Background(), in)
	require.NoError(t, err)
	return m
}

func TestJoinIssuesTicketForPhysicalMeetup(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	end := time.Now().Add(50 * time.Hour)
	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine, Lisbon"
		in.EndTime = &end
		in.PricePerPerson = decimal.NewFromInt(12)
	})

	res, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	assert.Equal(t, models.MemberStatusGoing, res.Member.Status)
	require.NotNil(t, res.Ticket)
	assert.Equal(t, models.TicketStatusActive, res.Ticket.Status)
	assert.NotEmpty(t, res.Ticket.Number)
	assert.NotEmpty(t, res.Ticket.QRPayload)

	stored, err := st.FindTicketByMember(ctx, res.Member.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(12)))
	assert.WithinDuration(t, end.Add(24*time.Hour), stored.ExpiresAt, time.Second)
}

func TestJoinWithoutPhysicalLocationSkipsTicket(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)

	m := createUpcoming(t, lifecycle, nil)

	res, err := membership.Join(context.Background(), m.ID, "bob", "")
	require.NoError(t, err)
	assert.Nil(t, res.Ticket)
}

func TestJoinTicketExpiryFallsBackWhenNoEndTime(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Riverside park"
	})

	res, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	stored, err := st.FindTicketByMember(ctx, res.Member.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.WithinDuration(t, time.Now().Add(720*time.Hour), stored.ExpiresAt, time.Minute)
}

func TestJoinCapacity(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		two := 2
		in.MaxAttendees = &two
	})

	_, err := membership.Join(ctx, m.ID, "alice", "")
	require.NoError(t, err)
	_, err = membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	_, err = membership.Join(ctx, m.ID, "carol", "")
	assert.ErrorIs(t, err, status.ErrFull)
}

func TestJoinIsIdempotentAtCapacity(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		one := 1
		in.Location = "Cafe Nine"
		in.MaxAttendees = &one
	})

	first, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	// The meetup is now full, but bob joining again is a no-op, not an error.
	again, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, first.Member.ID, again.Member.ID)
	require.NotNil(t, again.Ticket)
	assert.Equal(t, first.Ticket.ID, again.Ticket.ID)
}

func TestRejoinUpdatesAttendanceStatus(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine"
	})

	first, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusGoing, first.Member.Status)

	// Joining again with another status rewrites the existing row instead of
	// creating a second membership or a second ticket.
	again, err := membership.Join(ctx, m.ID, "bob", models.MemberStatusMaybe)
	require.NoError(t, err)
	assert.Equal(t, first.Member.ID, again.Member.ID)
	assert.Equal(t, models.MemberStatusMaybe, again.Member.Status)
	require.NotNil(t, again.Ticket)
	assert.Equal(t, first.Ticket.ID, again.Ticket.ID)

	stored, err := st.GetMember(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.MemberStatusMaybe, stored.Status)

	count, err := st.CountMembers(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJoinWithExplicitStatus(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, nil)

	res, err := membership.Join(ctx, m.ID, "bob", models.MemberStatusInterested)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusInterested, res.Member.Status)

	stored, err := st.GetMember(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.MemberStatusInterested, stored.Status)
}

func TestConcurrentJoinsAdmitExactlyCapacity(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	one := 1
	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.MaxAttendees = &one
	})

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			st.addUser(userID, userID)
			_, errs[i] = membership.Join(ctx, m.ID, userID, "")
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, status.ErrFull)
		}
	}
	assert.Equal(t, 1, admitted)

	count, err := st.CountMembers(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJoinBlockedByApprovalState(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	pending := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.VenueID = "venue-1"
	})
	_, err := membership.Join(ctx, pending.ID, "bob", "")
	require.ErrorIs(t, err, status.ErrInvalidState)
	assert.ErrorContains(t, err, status.MsgPendingApproval)

	rejected := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.VenueID = "venue-1"
	})
	_, err = lifecycle.ApproveOrReject(ctx, rejected.ID, "venue-1", ActionReject, nil, "no space")
	require.NoError(t, err)

	_, err = membership.Join(ctx, rejected.ID, "bob", "")
	require.ErrorIs(t, err, status.ErrInvalidState)
	assert.ErrorContains(t, err, status.MsgRejectedByVenue)
}

func TestJoinUnknownMeetup(t *testing.T) {
	membership, _, _ := newMembershipFixture(t)
	_, err := membership.Join(context.Background(), "nope", "bob", "")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestLeaveKeepsTicket(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine"
	})

	res, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	require.NoError(t, membership.Leave(ctx, m.ID, "bob"))

	member, err := st.GetMember(ctx, m.ID, "bob")
	require.NoError(t, err)
	assert.Nil(t, member)

	ticket, err := st.FindTicketByMember(ctx, res.Member.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, models.TicketStatusActive, ticket.Status)
}

func TestRejoinAfterLeaveReusesTicket(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine"
	})

	first, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)
	require.NoError(t, membership.Leave(ctx, m.ID, "bob"))

	second, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Member.ID, second.Member.ID)
	require.NotNil(t, second.Ticket)
	assert.Equal(t, first.Ticket.ID, second.Ticket.ID)
	assert.Equal(t, first.Ticket.Number, second.Ticket.Number)
}

func TestLeaveRequiresMembership(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, nil)

	err := membership.Leave(ctx, m.ID, "bob")
	require.ErrorIs(t, err, status.ErrNotFound)
	assert.ErrorContains(t, err, status.MsgNotAMember)

	err = membership.Leave(ctx, "nope", "bob")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCheckInBurnsTicketOnce(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine"
	})
	res, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	ticket, err := membership.CheckIn(ctx, res.Ticket.QRPayload)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, ticket.Status)

	_, err = membership.CheckIn(ctx, res.Ticket.QRPayload)
	require.ErrorIs(t, err, status.ErrInvalidState)
	assert.ErrorContains(t, err, "already used")
}

func TestCheckInRejectsGarbagePayload(t *testing.T) {
	membership, _, _ := newMembershipFixture(t)
	_, err := membership.CheckIn(context.Background(), "not-a-ticket")
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestCheckInExpiresStaleTicket(t *testing.T) {
	membership, lifecycle, st := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine"
	})
	res, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	// Move the clock past the ticket's expiry.
	membership.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }

	_, err = membership.CheckIn(ctx, res.Ticket.QRPayload)
	require.ErrorIs(t, err, status.ErrInvalidState)
	assert.ErrorContains(t, err, "expired")

	stored, err := st.FindTicketByMember(ctx, res.Member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusExpired, stored.Status)
}

func TestRejoinReportsLazyExpiry(t *testing.T) {
	membership, lifecycle, _ := newMembershipFixture(t)
	ctx := context.Background()

	m := createUpcoming(t, lifecycle, func(in *CreateMeetupInput) {
		in.Location = "Cafe Nine"
	})
	_, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)

	membership.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }

	res, err := membership.Join(ctx, m.ID, "bob", "")
	require.NoError(t, err)
	require.NotNil(t, res.Ticket)
	assert.Equal(t, models.TicketStatusExpired, res.Ticket.Status)
}
