package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/pixsort-client/internal/clients/api"
	apierrors "github.com/pribylovaa/pixsort-client/internal/errors"
	"github.com/pribylovaa/pixsort-client/internal/models"
)

// previewSize — сколько изображений категории показывает обзор галереи.
const previewSize = 3

// Gallery — обзор галереи: категории по алфавиту, в каждой до трёх изображений.
func (h *Handlers) Gallery(w http.ResponseWriter, r *http.Request) {
	images, err := h.API.ListImages(r.Context(), models.ImageFilter{Search: r.URL.Query().Get("search")})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	groups := api.Preview(api.GroupByCategory(images), previewSize)
	if groups == nil {
		groups = []models.CategoryGroup{}
	}

	writeJSON(w, http.StatusOK, groups)
}

// GalleryCategory — все изображения одной категории ("animals" -> "Animals").
func (h *Handlers) GalleryCategory(w http.ResponseWriter, r *http.Request) {
	title := api.CategoryTitle(chi.URLParam(r, "category"))
	if title == "" {
		apierrors.WriteError(w, r, apierrors.BadRequest("category is required"))
		return
	}

	images, err := h.API.ListImages(r.Context(), models.ImageFilter{
		Category: title,
		Search:   r.URL.Query().Get("search"),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.CategoryGroup{Category: title, Images: nonNil(images)})
}

func (h *Handlers) PublicImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.API.PublicImages(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(images))
}

func (h *Handlers) Marketplace(w http.ResponseWriter, r *http.Request) {
	images, err := h.API.Marketplace(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(images))
}

func (h *Handlers) Purchases(w http.ResponseWriter, r *http.Request) {
	images, err := h.API.MyPurchases(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(images))
}

func nonNil(images []models.Image) []models.Image {
	if images == nil {
		return []models.Image{}
	}
	return images
}
