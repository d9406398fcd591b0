package interceptors

import (
	"net/http"

	"github.com/google/uuid"
)

// WithRequestID гарантирует заголовок X-Request-Id у исходящего запроса:
//  1. уже выставлен — не трогает;
//  2. есть в контексте по CtxRequestID — берёт оттуда;
//  3. иначе генерирует UUID.
func WithRequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(HeaderRequestID) != "" {
				return next.RoundTrip(r)
			}

			rid, _ := r.Context().Value(CtxRequestID).(string)
			if rid == "" {
				rid = uuid.NewString()
			}

			r = r.Clone(r.Context())
			r.Header.Set(HeaderRequestID, rid)

			return next.RoundTrip(r)
		})
	}
}
