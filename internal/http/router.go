package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/pixsort-client/internal/clients"
	"github.com/pribylovaa/pixsort-client/internal/clients/interceptors"
	"github.com/pribylovaa/pixsort-client/internal/http/handlers"
	"github.com/pribylovaa/pixsort-client/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// CORSOrigins — origin'ы UI (например, "http://localhost:3000");
	// пустой список — CORS не подключается.
	CORSOrigins []string
}

// NewRouter собирает http.Handler демона: chi, middleware и маршруты.
func NewRouter(cl *clients.Clients, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // X-Request-Id до логирования
		middleware.Logging(opts.Logger), // request-scoped логгер в контексте
	)
	if len(opts.CORSOrigins) > 0 {
		root.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", interceptors.HeaderRequestID},
			ExposedHeaders:   []string{interceptors.HeaderRequestID},
			AllowCredentials: false,
			MaxAge:           60 * 15,
		}))
	}

	h := handlers.New(cl)
	h.OriginPatterns = originHosts(opts.CORSOrigins)

	// Поток событий живёт дольше любого запроса: без общего дедлайна.
	root.Get("/session/events", h.SessionEvents)

	root.Group(func(r chi.Router) {
		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}
		registerRoutes(r, h, middleware.RequireSession(cl.Session))
	})

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов демона.
func registerRoutes(r chi.Router, h *handlers.Handlers, guard middleware.Middleware) {
	// session
	r.Get("/session", h.GetSession)
	r.Post("/session/login", h.Login)
	r.Post("/session/logout", h.Logout)

	// без сессии
	r.Post("/signup", h.Signup)
	r.Get("/public-images", h.PublicImages)
	r.Get("/marketplace", h.Marketplace)

	r.Group(func(r chi.Router) {
		r.Use(guard)

		r.Get("/gallery", h.Gallery)
		r.Get("/gallery/{category}", h.GalleryCategory)

		r.Post("/images", h.Upload)
		r.Get("/images/{id}", h.GetImage)
		r.Patch("/images/{id}", h.SetVisibility)
		r.Delete("/images/{id}", h.DeleteImage)
		r.Post("/images/{id}/purchase", h.Purchase)
		r.Get("/purchases", h.Purchases)

		r.Get("/stats", h.Stats)
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Post("/profile/password", h.ChangePassword)
		r.Delete("/account", h.DeleteAccount)
	})
}

// originHosts переводит origin'ы CORS в шаблоны хостов для WebSocket.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}

		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		out = append(out, u.Host)
	}

	return out
}
