package handlers

import (
	"net/http"
	"time"

	"meetup-system/models"
	"meetup-system/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type MeetupHandler struct {
	lifecycle    *services.MeetupService
	revealWindow time.Duration
}

func NewMeetupHandler(lifecycle *services.MeetupService, revealWindow time.Duration) *MeetupHandler {
	return &MeetupHandler{lifecycle: lifecycle, revealWindow: revealWindow}
}

type createMeetupRequest struct {
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Image          string              `json:"image"`
	StartTime      string              `json:"start_time"`
	EndTime        string              `json:"end_time"`
	MaxAttendees   *int                `json:"max_attendees"`
	Category       string              `json:"category"`
	Tags           []string            `json:"tags"`
	Location       string              `json:"location"`
	Coordinates    *models.Coordinates `json:"coordinates"`
	VenueID        string              `json:"venue_id"`
	Visibility     string              `json:"visibility"`
	IsFree         *bool               `json:"is_free"`
	PricePerPerson *decimal.Decimal    `json:"price_per_person"`
	IsBlindMeet    bool                `json:"is_blind_meet"`
	Type           string              `json:"type"`
}

func (h *MeetupHandler) Create(e *core.RequestEvent) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}

	var req createMeetupRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}

	start, err := parseTime(req.StartTime)
	if err != nil {
		return apis.NewBadRequestError("start_time must be RFC 3339", err)
	}
	var end *time.Time
	if req.EndTime != "" {
		t, err := parseTime(req.EndTime)
		if err != nil {
			return apis.NewBadRequestError("end_time must be RFC 3339", err)
		}
		end = &t
	}

	in := services.CreateMeetupInput{
		Title:        req.Title,
		Description:  req.Description,
		Image:        req.Image,
		StartTime:    start,
		EndTime:      end,
		MaxAttendees: req.MaxAttendees,
		Category:     req.Category,
		Tags:         req.Tags,
		Location:     req.Location,
		Coordinates:  req.Coordinates,
		CreatorID:    userID,
		VenueID:      req.VenueID,
		Visibility:   models.Visibility(req.Visibility),
		IsBlindMeet:  req.IsBlindMeet,
		Type:         models.MeetupType(req.Type),
	}
	if req.PricePerPerson != nil {
		in.PricePerPerson = *req.PricePerPerson
	}
	if req.IsFree != nil {
		in.IsFree = *req.IsFree
	} else {
		in.IsFree = in.PricePerPerson.IsZero()
	}

	m, err := h.lifecycle.Create(e.Request.Context(), in)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusCreated, m)
}

func (h *MeetupHandler) Get(e *core.RequestEvent) error {
	m, err := h.lifecycle.Get(e.Request.Context(), e.Request.PathValue("meetupId"))
	if err != nil {
		return toAPIError(err)
	}
	services.ConcealIfHidden(m, viewerID(e), time.Now(), h.revealWindow)
	return e.JSON(http.StatusOK, m)
}

type updateMeetupRequest struct {
	Title          *string             `json:"title"`
	Description    *string             `json:"description"`
	Image          *string             `json:"image"`
	StartTime      *string             `json:"start_time"`
	EndTime        *string             `json:"end_time"`
	MaxAttendees   *int                `json:"max_attendees"`
	Category       *string             `json:"category"`
	Tags           []string            `json:"tags"`
	Location       *string             `json:"location"`
	Coordinates    *models.Coordinates `json:"coordinates"`
	VenueID        *string             `json:"venue_id"`
	Visibility     *string             `json:"visibility"`
	IsFree         *bool               `json:"is_free"`
	PricePerPerson *decimal.Decimal    `json:"price_per_person"`
	IsBlindMeet    *bool               `json:"is_blind_meet"`
	Type           *string             `json:"type"`
}

func (h *MeetupHandler) Update(e *core.RequestEvent) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}

	var req updateMeetupRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}

	patch := services.UpdateMeetupPatch{
		Title:          req.Title,
		Description:    req.Description,
		Image:          req.Image,
		MaxAttendees:   req.MaxAttendees,
		Category:       req.Category,
		Tags:           req.Tags,
		Location:       req.Location,
		Coordinates:    req.Coordinates,
		VenueID:        req.VenueID,
		IsFree:         req.IsFree,
		PricePerPerson: req.PricePerPerson,
		IsBlindMeet:    req.IsBlindMeet,
	}
	if req.StartTime != nil {
		t, err := parseTime(*req.StartTime)
		if err != nil {
			return apis.NewBadRequestError("start_time must be RFC 3339", err)
		}
		patch.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := parseTime(*req.EndTime)
		if err != nil {
			return apis.NewBadRequestError("end_time must be RFC 3339", err)
		}
		patch.EndTime = &t
	}
	if req.Visibility != nil {
		v := models.Visibility(*req.Visibility)
		patch.Visibility = &v
	}
	if req.Type != nil {
		mt := models.MeetupType(*req.Type)
		patch.Type = &mt
	}

	m, err := h.lifecycle.Update(e.Request.Context(), e.Request.PathValue("meetupId"), userID, patch)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, m)
}

func (h *MeetupHandler) Delete(e *core.RequestEvent) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}
	if err := h.lifecycle.Delete(e.Request.Context(), e.Request.PathValue("meetupId"), userID); err != nil {
		return toAPIError(err)
	}
	return e.NoContent(http.StatusNoContent)
}

type decisionRequest struct {
	Action        string           `json:"action"`
	ApprovedPrice *decimal.Decimal `json:"approved_price"`
	Reason        string           `json:"reason"`
}

// Decide handles the venue's approve/reject call on a pending meetup.
func (h *MeetupHandler) Decide(e *core.RequestEvent) error {
	actorID, err := requireUser(e)
	if err != nil {
		return err
	}

	var req decisionRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}

	m, err := h.lifecycle.ApproveOrReject(e.Request.Context(), e.Request.PathValue("meetupId"), actorID, req.Action, req.ApprovedPrice, req.Reason)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, m)
}

// PendingForVenue lists the approval queue. Only the venue itself may see it.
func (h *MeetupHandler) PendingForVenue(e *core.RequestEvent) error {
	actorID, err := requireUser(e)
	if err != nil {
		return err
	}
	venueID := e.Request.PathValue("venueId")
	if actorID != venueID {
		return apis.NewForbiddenError("only the venue may view its approval queue", nil)
	}

	pending, err := h.lifecycle.ListPendingForVenue(e.Request.Context(), venueID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": pending})
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
