package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/session"
	logctx "github.com/pribylovaa/pixsort-client/pkg/log"
)

const (
	// eventBuffer — сколько событий ждут отправки медленному клиенту;
	// при переполнении новые события отбрасываются.
	eventBuffer  = 16
	writeTimeout = 5 * time.Second
)

// SessionEvents — поток событий сессии по WebSocket.
// Первым сообщением уходит snapshot текущего состояния, затем события
// login/refresh/logout с целью навигации. Сообщения клиента не ожидаются.
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	lg := logctx.From(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		lg.Info("ws_accept_failed", slog.String("err", err.Error()))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	events := make(chan models.SessionEvent, eventBuffer)
	unsubscribe := h.Session.Subscribe(session.ObserverFunc(func(e session.Event) {
		select {
		case events <- eventView(e):
		default:
			lg.Warn("ws_event_dropped", slog.String("kind", e.Kind.String()))
		}
	}))
	defer unsubscribe()

	// Контекст отменяется, когда клиент закрывает соединение.
	ctx := conn.CloseRead(r.Context())

	if err := writeEvent(ctx, conn, h.snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev := <-events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				lg.Info("ws_write_failed", slog.String("err", err.Error()))
				return
			}
		}
	}
}

func (h *Handlers) snapshot() models.SessionEvent {
	out := models.SessionEvent{Kind: "snapshot", State: h.Session.State().String()}
	if user, ok := h.Session.CurrentUser(); ok {
		out.User = &user
	}

	return out
}

func eventView(e session.Event) models.SessionEvent {
	out := models.SessionEvent{
		Kind:     e.Kind.String(),
		State:    e.State.String(),
		Navigate: string(e.Navigate),
		Reason:   string(e.Reason),
	}
	if !e.User.IsZero() {
		user := e.User
		out.User = &user
	}

	return out
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev models.SessionEvent) error {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return conn.Write(ctx, websocket.MessageText, b)
}
