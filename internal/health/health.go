// health — gRPC health-check демона (grpc.health.v1).
//
// Статусы:
//   - "" (демон целиком) — SERVING, когда стартовая проверка сессии
//     завершена (AUTHENTICATED или ANONYMOUS);
//   - ServiceSession — SERVING, пока есть проверенная сессия пользователя.
package health

import (
	"log/slog"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pribylovaa/pixsort-client/internal/session"
	"github.com/pribylovaa/pixsort-client/pkg/interceptors"
)

// ServiceSession — имя сервиса в health-check для состояния сессии.
const ServiceSession = "pixsort.session"

// StateSource — то, за чем следит health-check (реализация: *session.Manager).
type StateSource interface {
	State() session.State
	Subscribe(o session.Observer) (unsubscribe func())
}

// Server — gRPC-сервер с единственным сервисом health.
type Server struct {
	grpc *grpc.Server
	hs   *grpchealth.Server
}

// New создаёт сервер: логирование вызовов и серверные метрики
// go-grpc-prometheus. Все статусы изначально NOT_SERVING.
func New(log *slog.Logger) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryLogging(log),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	grpc_prometheus.Register(srv)

	s := &Server{grpc: srv, hs: hs}
	s.apply(session.StateUninitialized)

	return s
}

// Track связывает статусы с состоянием сессии и возвращает функцию отписки.
func (s *Server) Track(src StateSource) (stop func()) {
	stop = src.Subscribe(session.ObserverFunc(func(e session.Event) {
		s.apply(e.State)
	}))
	s.apply(src.State())

	return stop
}

// Serve блокируется до остановки сервера.
func (s *Server) Serve(ln net.Listener) error {
	return s.grpc.Serve(ln)
}

// Shutdown переводит все статусы в NOT_SERVING и дожидается активных вызовов.
func (s *Server) Shutdown() {
	s.hs.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) apply(st session.State) {
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if st == session.StateAuthenticated || st == session.StateAnonymous {
		overall = healthpb.HealthCheckResponse_SERVING
	}

	sess := healthpb.HealthCheckResponse_NOT_SERVING
	if st == session.StateAuthenticated {
		sess = healthpb.HealthCheckResponse_SERVING
	}

	s.hs.SetServingStatus("", overall)
	s.hs.SetServingStatus(ServiceSession, sess)
}
