package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketStatusActive    TicketStatus = "ACTIVE"
	TicketStatusUsed      TicketStatus = "USED"
	TicketStatusExpired   TicketStatus = "EXPIRED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

type Ticket struct {
	ID        string          `json:"id"`
	MeetupID  string          `json:"meetup_id"`
	MemberID  string          `json:"member_id"`
	UserID    string          `json:"user_id"`
	Number    string          `json:"number"`
	QRPayload string          `json:"qr_payload"`
	Price     decimal.Decimal `json:"price"`
	ExpiresAt time.Time       `json:"expires_at"`
	Status    TicketStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// TicketView is the displayable subset returned to clients on join; the full
// ticket record never leaves the core.
type TicketView struct {
	ID        string       `json:"id"`
	Number    string       `json:"number"`
	QRPayload string       `json:"qr_payload"`
	Status    TicketStatus `json:"status"`
}

func (t *Ticket) View() *TicketView {
	return &TicketView{
		ID:        t.ID,
		Number:    t.Number,
		QRPayload: t.QRPayload,
		Status:    t.Status,
	}
}
