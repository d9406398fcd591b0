package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/pixsort-client/internal/errors"
	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/session"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, invalidBody())
		return
	}
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		apierrors.WriteError(w, r, apierrors.BadRequest("username and password are required"))
		return
	}

	user, err := h.Session.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SessionView{
		State:    session.StateAuthenticated.String(),
		User:     &user,
		Navigate: string(session.RouteHome),
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Logout(r.Context()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loggedOut())
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	out := models.SessionView{State: h.Session.State().String()}
	if user, ok := h.Session.CurrentUser(); ok {
		out.User = &user
	}

	writeJSON(w, http.StatusOK, out)
}

func loggedOut() models.SessionView {
	return models.SessionView{
		State:    session.StateAnonymous.String(),
		Navigate: string(session.RouteLogin),
	}
}
