package session

import "github.com/pribylovaa/pixsort-client/internal/models"

// EventKind — тип события сессии.
type EventKind int

const (
	// EventReady — Init завершён, состояние в Event.State.
	EventReady EventKind = iota + 1
	// EventLogin — успешный вход.
	EventLogin
	// EventRefresh — access-токен молча обновлён.
	EventRefresh
	// EventLogout — сессия завершена (пользователем или принудительно).
	EventLogout
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventLogin:
		return "login"
	case EventRefresh:
		return "refresh"
	case EventLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Route — куда потребителю следует перейти после события.
type Route string

const (
	RouteNone  Route = ""
	RouteHome  Route = "/"
	RouteLogin Route = "/login"
)

// LogoutReason — причина завершения сессии.
type LogoutReason string

const (
	ReasonUser               LogoutReason = "user"
	ReasonRefreshFailed      LogoutReason = "refresh_failed"
	ReasonVerificationFailed LogoutReason = "verification_failed"
	ReasonUnauthorized       LogoutReason = "unauthorized"
)

// Event — уведомление наблюдателям.
type Event struct {
	Kind     EventKind
	State    State
	User     models.UserSummary
	Navigate Route
	Reason   LogoutReason // только для EventLogout
	Err      error        // причина принудительного logout
}

// Observer получает события сессии. Вызывается синхронно, вне внутренних
// блокировок менеджера; долгую работу наблюдатель выносит в свою горутину.
type Observer interface {
	OnSessionEvent(Event)
}

// ObserverFunc — адаптер обычной функции к Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnSessionEvent(e Event) { f(e) }
