package clients

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/pixsort-client/internal/clients/api"
	"github.com/pribylovaa/pixsort-client/internal/clients/authapi"
	"github.com/pribylovaa/pixsort-client/internal/clients/interceptors"
	"github.com/pribylovaa/pixsort-client/internal/config"
	"github.com/pribylovaa/pixsort-client/internal/session"
	"github.com/pribylovaa/pixsort-client/internal/store"
	"github.com/pribylovaa/pixsort-client/internal/store/file"
	"github.com/pribylovaa/pixsort-client/internal/store/memory"
	redisstore "github.com/pribylovaa/pixsort-client/internal/store/redis"
)

// Clients агрегирует сессию и клиенты бэкенда Pixsort.
type Clients struct {
	Session *session.Manager
	API     *api.Client
	Store   store.CredentialStore

	closers []io.Closer
}

// Deps — внешние зависимости сборки.
type Deps struct {
	Logger  *slog.Logger
	Metrics session.Metrics
	// Store — готовое хранилище; nil — открыть по cfg.Store.
	Store store.CredentialStore
	// Base — нижний транспорт (для тестов); nil — http.DefaultTransport.
	Base http.RoundTripper
}

// New открывает хранилище, создаёт Manager и клиенты.
// Init сессии не вызывается: это делает владелец (демон).
func New(ctx context.Context, cfg config.Config, deps Deps) (*Clients, error) {
	const op = "internal/clients/New"

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Clients{Store: deps.Store}
	if c.Store == nil {
		st, closer, err := openStore(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.Store = st
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	// Цепочка исходящих интерсепторов: request id -> logging -> user agent -> timeout.
	chain := func(base http.RoundTripper) http.RoundTripper {
		return interceptors.Chain(base,
			interceptors.WithRequestID(),
			interceptors.WithLogging(log),
			interceptors.WithUserAgent(cfg.API.UserAgent),
			interceptors.WithTimeout(cfg.Timeouts.Upstream),
		)
	}

	base := deps.Base
	if base == nil {
		base = http.DefaultTransport
	}

	auth, err := authapi.New(cfg.API.BaseURL, authapi.Options{
		HTTPClient: &http.Client{Transport: chain(base)},
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%s: auth api: %w", op, err)
	}

	c.Session = session.New(c.Store, auth, session.Options{
		Leeway:  cfg.Session.ExpiryLeeway,
		Metrics: deps.Metrics,
	})

	// Сессионный транспорт — самый внутренний: Authorization выставляется
	// уже после логирования и таймаута.
	hc := &http.Client{Transport: chain(&session.Transport{
		Base:                 base,
		Session:              c.Session,
		LogoutOnUnauthorized: cfg.Session.LogoutOnUnauthorized,
	})}

	c.API, err = api.New(cfg.API.BaseURL, hc)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%s: pixsort api: %w", op, err)
	}

	return c, nil
}

// Close освобождает ресурсы хранилища.
func (c *Clients) Close() error {
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.CredentialStore, io.Closer, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		return memory.New(), nil, nil

	case config.StoreRedis:
		st, err := redisstore.New(ctx, cfg.RedisURL, cfg.Key, cfg.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return st, st, nil

	case config.StoreFile, "":
		path, err := cfg.ResolvedFilePath()
		if err != nil {
			return nil, nil, err
		}
		st, err := file.New(path)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return st, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
