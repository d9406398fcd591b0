// errors стандартизирует ответы об ошибках HTTP-демона.
// На вход он принимает ошибку (сессии, клиента API или контекста),
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"

	"github.com/pribylovaa/pixsort-client/internal/clients/api"
	"github.com/pribylovaa/pixsort-client/internal/session"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrNotAuthenticated — защищённый маршрут без установленной сессии.
	ErrNotAuthenticated = stderrors.New("not authenticated")
	// ErrNotReady — сессия всё ещё проверяется, а запрос уже отменён.
	ErrNotReady = stderrors.New("session is not ready")
)

// InputError — некорректный ввод, обнаруженный самим демоном.
type InputError struct{ Msg string }

func (e *InputError) Error() string { return e.Msg }

// BadRequest — ошибка ввода с безопасным для показа сообщением.
func BadRequest(msg string) error { return &InputError{Msg: msg} }

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - программная ошибка вызова: 500/internal;
//   - ошибки сессии - 401 (вход/обновление/проверка) или 502 (бэкенд недоступен);
//   - ответ бэкенда (*api.APIError) - 400/401/403/404 как есть, 5xx -> 502;
//   - дедлайн/отмена - 504/499; сетевая ошибка - 502;
//   - прочее - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func classify(err error) (int, string, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal", "internal error"
	}

	var (
		inErr  *InputError
		apiErr *api.APIError
		netErr net.Error
	)

	switch {
	case stderrors.As(err, &inErr):
		return http.StatusBadRequest, "invalid_argument", inErr.Msg

	case stderrors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthenticated", "login required"
	case stderrors.Is(err, ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready", "session is being verified"

	case stderrors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", session.UserMessage(err)
	case stderrors.Is(err, session.ErrRefreshFailed):
		return http.StatusUnauthorized, "session_expired", session.UserMessage(err)
	case stderrors.Is(err, session.ErrVerificationFailed):
		return http.StatusUnauthorized, "session_invalid", session.UserMessage(err)
	case stderrors.Is(err, session.ErrNetworkFailure):
		return http.StatusBadGateway, "upstream_unavailable", session.UserMessage(err)

	case stderrors.Is(err, api.ErrPasswordMismatch):
		return http.StatusBadRequest, "password_mismatch", "the two password fields didn't match"

	case stderrors.As(err, &apiErr):
		return fromBackend(apiErr)

	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case stderrors.As(err, &netErr):
		return http.StatusBadGateway, "upstream_unavailable", "backend unavailable"
	}

	return http.StatusInternalServerError, "internal", "internal error"
}

// fromBackend — маппинг статуса бэкенда. Сообщения 4xx бэкенд формирует
// для пользователя (ошибки валидации DRF), поэтому отдаются как есть.
func fromBackend(e *api.APIError) (int, string, string) {
	switch e.Status {
	case http.StatusBadRequest:
		return http.StatusBadRequest, "invalid_argument", e.Message()
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, "unauthenticated", "login required"
	case http.StatusForbidden:
		return http.StatusForbidden, "permission_denied", e.Message()
	case http.StatusNotFound:
		return http.StatusNotFound, "not_found", "not found"
	case http.StatusConflict:
		return http.StatusConflict, "already_exists", e.Message()
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "resource_exhausted", "too many requests"
	}

	if e.Status >= 500 {
		return http.StatusBadGateway, "upstream_error", "backend error"
	}

	return http.StatusInternalServerError, "internal", "internal error"
}
