package models

import (
	"time"
)

// Attendance statuses a member may hold on a meetup. Going is the default
// on join; the member can move between states by joining again.
const (
	MemberStatusGoing      = "going"
	MemberStatusMaybe      = "maybe"
	MemberStatusInterested = "interested"
)

type Member struct {
	ID       string    `json:"id"`
	MeetupID string    `json:"meetup_id"`
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`

	User *UserSummary `json:"user,omitempty"`
}
