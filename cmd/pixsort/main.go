package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/pixsort-client/internal/clients"
	"github.com/pribylovaa/pixsort-client/internal/config"
	"github.com/pribylovaa/pixsort-client/internal/health"
	daemonhttp "github.com/pribylovaa/pixsort-client/internal/http"
	"github.com/pribylovaa/pixsort-client/internal/metrics"
	"github.com/pribylovaa/pixsort-client/internal/session"
	logctx "github.com/pribylovaa/pixsort-client/pkg/log"
	"github.com/pribylovaa/pixsort-client/pkg/redact"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting pixsort", "env", cfg.Env, "store", cfg.Store.Kind)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	sessionMetrics, err := metrics.NewSession(prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("metrics_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	cl, err := clients.New(rootCtx, *cfg, clients.Deps{Logger: log, Metrics: sessionMetrics})
	if err != nil {
		log.Error("clients_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if cerr := cl.Close(); cerr != nil {
			log.Warn("clients_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	unsubscribe := cl.Session.Subscribe(session.ObserverFunc(func(e session.Event) {
		attrs := []any{
			slog.String("kind", e.Kind.String()),
			slog.String("state", e.State.String()),
		}
		if e.Navigate != session.RouteNone {
			attrs = append(attrs, slog.String("navigate", string(e.Navigate)))
		}
		if e.Reason != "" {
			attrs = append(attrs, slog.String("reason", string(e.Reason)))
		}
		if !e.User.IsZero() {
			attrs = append(attrs, slog.String("user", redact.Username(e.User.Username)))
		}
		log.Info("session_event", attrs...)
	}))
	defer unsubscribe()

	apiHandler := daemonhttp.NewRouter(cl, daemonhttp.Options{
		Logger:      log,
		Timeout:     cfg.Timeouts.Request,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	// gRPC health-check: статусы следуют за состоянием сессии.
	var healthSrv *health.Server
	if cfg.GRPC.Enabled {
		grpc_prometheus.EnableHandlingTimeHistogram()

		healthSrv = health.New(log)
		defer healthSrv.Track(cl.Session)()

		grpcAddr := cfg.GRPC.Addr()
		gln, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Error("grpc_listen_failed", slog.String("addr", grpcAddr), slog.String("err", err.Error()))
			_ = httpSrv.Close()
			os.Exit(1)
		}

		log.Info("grpc_listen_start", slog.String("addr", grpcAddr))

		go func() {
			if err := healthSrv.Serve(gln); err != nil {
				log.Error("grpc_serve_failed", slog.String("err", err.Error()))
			}
		}()
	}

	// Проверка сохранённой сессии идёт, пока сервер уже принимает запросы:
	// защищённые маршруты ждут её завершения.
	go func() {
		ctx := logctx.Into(rootCtx, log)
		if err := cl.Session.Init(ctx); err != nil {
			log.Warn("session_init_failed", slog.String("err", err.Error()))
		}

		atomic.StoreInt32(&ready, 1)
		log.Info("daemon_ready", slog.String("session", cl.Session.State().String()))
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	if healthSrv != nil {
		healthSrv.Shutdown()
		log.Info("grpc_stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
