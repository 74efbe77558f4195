package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"meetup-system/internal/status"
	"meetup-system/models"
	"meetup-system/store"
)

// fakeStore is an in-memory store.Store for service tests. WithTx serializes
// callers and restores a snapshot when the callback errors, matching the
// rollback behavior the services rely on.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  int

	meetups map[string]*models.Meetup
	members map[string]*models.Member
	tickets map[string]*models.Ticket
	users   map[string]*models.UserSummary
	venues  map[string]*models.VenueSummary

	// When set, UserSummary fails with this error.
	failUserSummary error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meetups: map[string]*models.Meetup{},
		members: map[string]*models.Member{},
		tickets: map[string]*models.Ticket{},
		users:   map[string]*models.UserSummary{},
		venues:  map[string]*models.VenueSummary{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeStore) addUser(id, displayName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &models.UserSummary{ID: id, DisplayName: displayName}
}

func (f *fakeStore) addVenue(id, name, city string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.venues[id] = &models.VenueSummary{ID: id, Name: name, Address: "1 Main St", City: city}
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx store.Store) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snapMeetups := cloneMeetupMap(f.meetups)
	snapMembers := cloneMemberMap(f.members)
	snapTickets := cloneTicketMap(f.tickets)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.meetups = snapMeetups
		f.members = snapMembers
		f.tickets = snapTickets
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) CreateMeetup(_ context.Context, m *models.Meetup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = f.nextID("meetup")
	}
	f.meetups[m.ID] = cloneMeetup(m)
	return nil
}

func (f *fakeStore) GetMeetup(_ context.Context, id string) (*models.Meetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetups[id]
	if !ok {
		return nil, status.NotFound("meetup")
	}
	return cloneMeetup(m), nil
}

func (f *fakeStore) SaveMeetup(_ context.Context, m *models.Meetup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.meetups[m.ID]; !ok {
		return status.NotFound("meetup")
	}
	f.meetups[m.ID] = cloneMeetup(m)
	return nil
}

func (f *fakeStore) DeleteMeetup(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.meetups[id]; !ok {
		return status.NotFound("meetup")
	}
	delete(f.meetups, id)
	for memberID, member := range f.members {
		if member.MeetupID == id {
			delete(f.members, memberID)
		}
	}
	for ticketID, ticket := range f.tickets {
		if ticket.MeetupID == id {
			delete(f.tickets, ticketID)
		}
	}
	return nil
}

func (f *fakeStore) ListMeetups(_ context.Context, q store.MeetupQuery) ([]*models.Meetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Meetup
	for _, m := range f.meetups {
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		if q.VenueID != "" && m.VenueID != q.VenueID {
			continue
		}
		if len(q.Statuses) > 0 && !statusIn(m.Status, q.Statuses) {
			continue
		}
		if q.Box != nil && m.Coordinates != nil && !q.Box.Contains(m.Coordinates.Lat, m.Coordinates.Lng) {
			continue
		}
		out = append(out, cloneMeetup(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func statusIn(s models.MeetupStatus, in []models.MeetupStatus) bool {
	for _, candidate := range in {
		if s == candidate {
			return true
		}
	}
	return false
}

func (f *fakeStore) GetMember(_ context.Context, meetupID, userID string) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range f.members {
		if member.MeetupID == meetupID && member.UserID == userID {
			clone := *member
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListMembers(_ context.Context, meetupID string) ([]*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Member
	for _, member := range f.members {
		if member.MeetupID == meetupID {
			clone := *member
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *fakeStore) CountMembers(_ context.Context, meetupID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, member := range f.members {
		if member.MeetupID == meetupID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateMember(_ context.Context, member *models.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.members {
		if existing.MeetupID == member.MeetupID && existing.UserID == member.UserID {
			return fmt.Errorf("unique constraint: member %s already in %s", member.UserID, member.MeetupID)
		}
	}
	if member.ID == "" {
		member.ID = f.nextID("member")
	}
	clone := *member
	f.members[member.ID] = &clone
	return nil
}

func (f *fakeStore) SaveMember(_ context.Context, member *models.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[member.ID]; !ok {
		return status.NotFound("member")
	}
	clone := *member
	f.members[member.ID] = &clone
	return nil
}

func (f *fakeStore) DeleteMember(_ context.Context, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[memberID]; !ok {
		return status.NotFound("member")
	}
	delete(f.members, memberID)
	return nil
}

func (f *fakeStore) CreateTicket(_ context.Context, t *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = f.nextID("ticket")
	}
	clone := *t
	f.tickets[t.ID] = &clone
	return nil
}

func (f *fakeStore) SaveTicket(_ context.Context, t *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[t.ID]; !ok {
		return status.NotFound("ticket")
	}
	clone := *t
	f.tickets[t.ID] = &clone
	return nil
}

func (f *fakeStore) FindTicketByMember(_ context.Context, memberID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.MemberID == memberID {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindTicketByUser(_ context.Context, meetupID, userID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.MeetupID == meetupID && ticket.UserID == userID {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UserSummary(_ context.Context, userID string) (*models.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUserSummary != nil {
		return nil, f.failUserSummary
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) VenueSummary(_ context.Context, venueID string) (*models.VenueSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.venues[venueID]
	if !ok {
		return nil, nil
	}
	clone := *v
	return &clone, nil
}

func cloneMeetup(m *models.Meetup) *models.Meetup {
	clone := *m
	if m.EndTime != nil {
		t := *m.EndTime
		clone.EndTime = &t
	}
	if m.MaxAttendees != nil {
		n := *m.MaxAttendees
		clone.MaxAttendees = &n
	}
	if m.Coordinates != nil {
		c := *m.Coordinates
		clone.Coordinates = &c
	}
	if m.VenueApprovedPrice != nil {
		p := *m.VenueApprovedPrice
		clone.VenueApprovedPrice = &p
	}
	clone.Tags = append([]string(nil), m.Tags...)
	clone.Creator = nil
	clone.Venue = nil
	clone.Members = nil
	clone.MemberCount = 0
	clone.DistanceKm = nil
	return &clone
}

func cloneMeetupMap(in map[string]*models.Meetup) map[string]*models.Meetup {
	out := make(map[string]*models.Meetup, len(in))
	for id, m := range in {
		out[id] = cloneMeetup(m)
	}
	return out
}

func cloneMemberMap(in map[string]*models.Member) map[string]*models.Member {
	out := make(map[string]*models.Member, len(in))
	for id, member := range in {
		clone := *member
		out[id] = &clone
	}
	return out
}

func cloneTicketMap(in map[string]*models.Ticket) map[string]*models.Ticket {
	out := make(map[string]*models.Ticket, len(in))
	for id, ticket := range in {
		clone := *ticket
		out[id] = &clone
	}
	return out
}
