package handlers

import (
	"net/http"

	"meetup-system/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type MembershipHandler struct {
	membership *services.MembershipService
}

func NewMembershipHandler(membership *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{membership: membership}
}

type joinRequest struct {
	Status string `json:"status"`
}

func (h *MembershipHandler) Join(e *core.RequestEvent) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}

	// The body is optional; an absent status defaults to "going".
	var req joinRequest
	_ = e.BindBody(&req)

	res, err := h.membership.Join(e.Request.Context(), e.Request.PathValue("meetupId"), userID, req.Status)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, res)
}

func (h *MembershipHandler) Leave(e *core.RequestEvent) error {
	userID, err := requireUser(e)
	if err != nil {
		return err
	}

	if err := h.membership.Leave(e.Request.Context(), e.Request.PathValue("meetupId"), userID); err != nil {
		return toAPIError(err)
	}
	return e.NoContent(http.StatusNoContent)
}

type checkInRequest struct {
	QRPayload string `json:"qr_payload"`
}

// CheckIn is the scanner endpoint: it burns an active ticket and returns the
// full ticket record so the door staff can see who arrived.
func (h *MembershipHandler) CheckIn(e *core.RequestEvent) error {
	if _, err := requireUser(e); err != nil {
		return err
	}

	var req checkInRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}
	if req.QRPayload == "" {
		return apis.NewBadRequestError("qr_payload is required", nil)
	}

	ticket, err := h.membership.CheckIn(e.Request.Context(), req.QRPayload)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}
