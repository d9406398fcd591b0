package session

import (
	"net/http"
	"strings"
)

// Transport — http.RoundTripper, который перед отправкой прогоняет
// запрос через Manager.PrepareRequest.
//
// Особенности:
//   - без сессии запрос уходит как есть;
//   - при неудачном обновлении токена запрос не отправляется,
//     возвращается ошибка с ErrRefreshFailed;
//   - с LogoutOnUnauthorized ответ 401 на текущий access-токен
//     завершает сессию (ответ всё равно возвращается вызывающему).
type Transport struct {
	Base                 http.RoundTripper
	Session              *Manager
	LogoutOnUnauthorized bool
}

// RoundTrip реализует http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	prepared, err := t.Session.PrepareRequest(req)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	resp, err := t.base().RoundTrip(prepared)
	if err != nil {
		return nil, err
	}

	if t.LogoutOnUnauthorized && resp.StatusCode == http.StatusUnauthorized {
		if access, ok := strings.CutPrefix(prepared.Header.Get("Authorization"), "Bearer "); ok {
			t.Session.Invalidate(req.Context(), access)
		}
	}

	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}

	return http.DefaultTransport
}
