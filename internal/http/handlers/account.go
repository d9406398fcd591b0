package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/pribylovaa/pixsort-client/internal/errors"
	"github.com/pribylovaa/pixsort-client/internal/models"
	logctx "github.com/pribylovaa/pixsort-client/pkg/log"
)

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in models.SignupRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, invalidBody())
		return
	}

	user, err := h.API.Signup(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.API.Stats(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.API.Profile(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in models.Profile
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, invalidBody())
		return
	}

	p, err := h.API.UpdateProfile(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in models.PasswordChangeRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, invalidBody())
		return
	}

	if err := h.API.ChangePassword(r.Context(), in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount удаляет аккаунт на бэкенде и завершает локальную сессию.
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.API.DeleteAccount(r.Context()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	// Аккаунта уже нет: ошибка очистки хранилища не меняет ответ.
	if err := h.Session.Logout(r.Context()); err != nil {
		logctx.From(r.Context()).Warn("account_deleted_logout_failed", slog.String("err", err.Error()))
	}

	writeJSON(w, http.StatusOK, loggedOut())
}
