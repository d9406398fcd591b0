// interceptors предоставляет набор http.RoundTripper-обёрток для исходящих
// запросов клиента к бэкенду Pixsort.
package interceptors

import "net/http"

type CtxKey string

// CtxRequestID — ключ контекста с request id входящего запроса демона;
// его кладёт middleware.RequestID, а WithRequestID пробрасывает на бэкенд.
const CtxRequestID CtxKey = "request_id"

// HeaderRequestID — заголовок корреляции запросов.
const HeaderRequestID = "X-Request-Id"

// Middleware оборачивает RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Func — адаптер функции к http.RoundTripper.
type Func func(*http.Request) (*http.Response, error)

func (f Func) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain оборачивает base мидлварами; первый в списке — внешний.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}

	return base
}
