package handler

import (
	"errors"
	"net/http"

	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/storage"
)

// Handler carries the chat core's entry points for the HTTP/WS surface.
type Handler struct {
	Hub      *chathub.Hub
	Router   *chathub.Router
	Presence *chathub.Presence
	Unread   *chathub.Unread
	Storage  storage.Storage
	Identity *identity.Manager
}

func NewHandler(hub *chathub.Hub, router *chathub.Router, presence *chathub.Presence,
	unread *chathub.Unread, s storage.Storage, idm *identity.Manager) *Handler {
	return &Handler{
		Hub:      hub,
		Router:   router,
		Presence: presence,
		Unread:   unread,
		Storage:  s,
		Identity: idm,
	}
}

// statusFor maps operation errors onto HTTP statuses per the error taxonomy:
// authentication 401, authorization 403, validation 400, the rest 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, chathub.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, chathub.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, chathub.ErrSelfChat),
		errors.Is(err, chathub.ErrUnknownUser),
		errors.Is(err, chathub.ErrEmptyBody),
		errors.Is(err, chathub.ErrBodyTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
