package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/pixsort-client/internal/clients"
	"github.com/pribylovaa/pixsort-client/internal/clients/api"
	apierrors "github.com/pribylovaa/pixsort-client/internal/errors"
	"github.com/pribylovaa/pixsort-client/internal/session"
)

// Handlers агрегирует зависимости: сессию и клиент Pixsort API.
type Handlers struct {
	Session *session.Manager
	API     *api.Client
	// OriginPatterns — хосты UI, которым разрешена подписка на события
	// сессии с другого origin (шаблоны filepath.Match, например "localhost:3000").
	OriginPatterns []string
}

func New(c *clients.Clients) *Handlers {
	return &Handlers{Session: c.Session, API: c.API}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

func invalidBody() error {
	return apierrors.BadRequest("invalid request body")
}

// imageID — id изображения из пути.
func imageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.BadRequest("invalid image id")
	}

	return id, nil
}
