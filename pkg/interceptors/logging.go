// interceptors — серверные gRPC-интерсепторы демона.
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/pixsort-client/pkg/log"
)

// UnaryLogging пишет одну запись на unary-вызов и кладёт обогащённый
// логгер в контекст (pkg/log).
//
// request_id берётся из metadata x-request-id, иначе генерируется.
// Успешные вызовы (codes.OK) пишутся на Debug: пробы health идут часто.
func UnaryLogging(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}

		from := "-"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			from = p.Addr.String()
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", info.FullMethod),
			slog.String("peer", from),
		)

		resp, err := handler(log.Into(ctx, l), req)

		code := status.Code(err)
		lvl := slog.LevelDebug
		if code != codes.OK {
			lvl = slog.LevelWarn
		}
		l.Log(ctx, lvl, "grpc",
			slog.String("code", code.String()),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, err
	}
}
