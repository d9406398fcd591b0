package handlers

import (
	"net/http"

	"github.com/pribylovaa/pixsort-client/internal/clients/api"
	apierrors "github.com/pribylovaa/pixsort-client/internal/errors"
	"github.com/pribylovaa/pixsort-client/internal/models"
)

// maxUploadBytes — предел тела multipart-загрузки.
const maxUploadBytes = 32 << 20

func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	f, hdr, err := r.FormFile(api.UploadField)
	if err != nil {
		apierrors.WriteError(w, r, apierrors.BadRequest(api.UploadField+" is required"))
		return
	}
	defer f.Close()

	img, err := h.API.Upload(r.Context(), hdr.Filename, f)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, img)
}

func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	img, err := h.API.GetImage(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, img)
}

// SetVisibility — PATCH {"is_public": bool}.
func (h *Handlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in models.VisibilityRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, invalidBody())
		return
	}

	img, err := h.API.SetVisibility(r.Context(), id, in.IsPublic)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, img)
}

func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.API.DeleteImage(r.Context(), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Purchase(w http.ResponseWriter, r *http.Request) {
	id, err := imageID(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.API.Purchase(r.Context(), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
