package interceptors

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/pixsort-client/pkg/log"
)

// WithLogging — логирование исходящих запросов.
// Поведение:
//   - добавляет к base request_id (если уже выставлен) и прокладывает
//     обогащённый логгер в контекст запроса (pkg/log);
//   - пишет одну финальную запись: msg="http_out", method, host, path, status, dur.
//
// Безопасность: не логирует тело, query и заголовок Authorization.
func WithLogging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			l := base
			if rid := r.Header.Get(HeaderRequestID); rid != "" {
				l = l.With(slog.String("request_id", rid))
			}

			r = r.WithContext(log.Into(r.Context(), l))

			resp, err := next.RoundTrip(r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("host", r.URL.Host),
				slog.String("path", r.URL.Path),
				slog.Duration("dur", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("err", err.Error()))
				l.LogAttrs(r.Context(), slog.LevelWarn, "http_out", attrs...)
				return nil, err
			}

			attrs = append(attrs, slog.Int("status", resp.StatusCode))
			l.LogAttrs(r.Context(), slog.LevelInfo, "http_out", attrs...)

			return resp, nil
		})
	}
}
