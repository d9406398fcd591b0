package interceptors

import "net/http"

// WithUserAgent выставляет User-Agent, если вызывающий не задал свой.
// Пустой ua делает мидлвар no-op.
func WithUserAgent(ua string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if ua == "" {
			return next
		}

		return Func(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("User-Agent") != "" {
				return next.RoundTrip(r)
			}

			r = r.Clone(r.Context())
			r.Header.Set("User-Agent", ua)

			return next.RoundTrip(r)
		})
	}
}
