package handlers

import (
	"errors"
	"net/http"

	"meetup-system/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// toAPIError maps domain sentinel errors onto HTTP responses. Unrecognized
// errors become 500s without leaking internals to the client.
func toAPIError(err error) error {
	switch {
	case errors.Is(err, status.ErrValidation):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrUnauthorized):
		return apis.NewForbiddenError(err.Error(), nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidState), errors.Is(err, status.ErrFull):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	default:
		return apis.NewInternalServerError("something went wrong", err)
	}
}

// requireUser returns the authenticated user id or an unauthorized error.
func requireUser(e *core.RequestEvent) (string, error) {
	if e.Auth == nil {
		return "", apis.NewUnauthorizedError("authentication required", nil)
	}
	return e.Auth.Id, nil
}

// viewerID returns the authenticated user id, or "" for guests.
func viewerID(e *core.RequestEvent) string {
	if e.Auth == nil {
		return ""
	}
	return e.Auth.Id
}
