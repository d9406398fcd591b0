package middleware

import (
	"net/http"

	apierrors "github.com/pribylovaa/pixsort-client/internal/errors"
)

// SessionState — то, что охране маршрутов нужно знать о сессии
// (реализация: session.Manager).
type SessionState interface {
	Ready() <-chan struct{}
	IsAuthenticated() bool
}

// RequireSession пропускает запрос только при установленной сессии.
//
// Поведение:
//   - пока сессия проверяется (CHECKING), запрос ждёт её готовности;
//     если контекст запроса истёк раньше — 503/not_ready;
//   - сессии нет — 401/unauthenticated, обработчик не вызывается.
func RequireSession(s SessionState) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-s.Ready():
			case <-r.Context().Done():
				apierrors.WriteError(w, r, apierrors.ErrNotReady)
				return
			}

			if !s.IsAuthenticated() {
				apierrors.WriteError(w, r, apierrors.ErrNotAuthenticated)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
