package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pribylovaa/pixsort-client/internal/clients/authapi"
	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/store"
	"github.com/pribylovaa/pixsort-client/internal/token"
	"github.com/pribylovaa/pixsort-client/pkg/log"
	"github.com/pribylovaa/pixsort-client/pkg/redact"
)

//go:generate mockgen -destination=../../mocks/mock_authapi.go -package=mocks github.com/pribylovaa/pixsort-client/internal/session AuthAPI

// AuthAPI — эндпоинты аутентификации бэкенда (реализация: authapi.Client).
// Ошибка отказа сервера должна оборачивать authapi.ErrUnauthorized.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	CurrentUser(ctx context.Context, accessToken string) (models.UserSummary, error)
}

// Options — необязательные параметры Manager.
type Options struct {
	// Leeway — запас до exp, начиная с которого токен считается истёкшим.
	// По умолчанию 0: истёкшим считается токен с exp <= now.
	Leeway time.Duration
	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time
	// Metrics — хуки наблюдаемости. По умолчанию no-op.
	Metrics Metrics
}

// Manager — владелец сессии: пары токенов в хранилище, состояния
// жизненного цикла и подписчиков на события.
type Manager struct {
	store   store.CredentialStore
	auth    AuthAPI
	leeway  time.Duration
	now     func() time.Time
	metrics Metrics

	// storeMu сериализует записи в хранилище; epoch растёт на каждом
	// login/logout и отсекает запоздавшие результаты refresh.
	storeMu sync.Mutex
	epoch   uint64

	mu        sync.RWMutex
	state     State
	user      models.UserSummary
	ready     chan struct{}
	readyOnce sync.Once
	observers map[uint64]Observer
	nextObsID uint64
}

// New создаёт Manager в состоянии UNINITIALIZED.
func New(st store.CredentialStore, auth AuthAPI, opts Options) *Manager {
	m := &Manager{
		store:     st,
		auth:      auth,
		leeway:    opts.Leeway,
		now:       opts.Now,
		metrics:   opts.Metrics,
		state:     StateUninitialized,
		ready:     make(chan struct{}),
		observers: make(map[uint64]Observer),
	}

	if m.now == nil {
		m.now = time.Now
	}

	if m.metrics == nil {
		m.metrics = nopMetrics{}
	}

	return m
}

// State возвращает текущее состояние жизненного цикла.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Ready закрывается, когда состояние впервые становится AUTHENTICATED
// или ANONYMOUS.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// IsAuthenticated сообщает, что сессия установлена и проверена.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// CurrentUser возвращает пользователя сессии; false — сессии нет.
func (m *Manager) CurrentUser() (models.UserSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StateAuthenticated {
		return models.UserSummary{}, false
	}

	return m.user, true
}

// Subscribe регистрирует наблюдателя и возвращает функцию отписки.
func (m *Manager) Subscribe(o Observer) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = o
	m.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// Init выполняет стартовую проверку сессии.
//
// Особенности:
//   - записи в хранилище нет — ANONYMOUS без сетевых вызовов;
//   - запись есть — токен при необходимости обновляется, затем личность
//     подтверждается запросом "кто я"; успех — AUTHENTICATED;
//   - любой отказ — хранилище очищается, ANONYMOUS, ошибка
//     оборачивает ErrVerificationFailed;
//   - login/logout во время проверки побеждает: результат Init
//     отбрасывается, хранилище и состояние не трогаются.
func (m *Manager) Init(ctx context.Context) error {
	const op = "session.Init"

	lg := log.From(ctx)
	m.setState(StateChecking)

	pair, epoch, err := m.load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if m.settle(epoch, StateAnonymous, models.UserSummary{}) {
			lg.Info("session_init_anonymous", slog.String("op", op))
		}
		return nil
	case err != nil:
		// Повреждённую или недоступную запись считаем отсутствием сессии.
		if !m.forceLogout(ctx, epoch, ReasonVerificationFailed, err) {
			return nil
		}
		return fmt.Errorf("%s: %w: %w", op, ErrVerificationFailed, err)
	}

	access, _, err := m.accessToken(ctx, pair, epoch)
	if err != nil {
		// Неудачный refresh уже завершил сессию сам.
		if errors.Is(err, errSuperseded) {
			lg.Info("session_init_superseded", slog.String("op", op))
			return nil
		}
		return fmt.Errorf("%s: %w: %w", op, ErrVerificationFailed, err)
	}

	user, err := m.auth.CurrentUser(ctx, access)
	if err != nil {
		if !m.forceLogout(ctx, epoch, ReasonVerificationFailed, err) {
			lg.Info("session_init_superseded", slog.String("op", op))
			return nil
		}
		return fmt.Errorf("%s: %w: %w", op, ErrVerificationFailed, err)
	}

	if !m.settle(epoch, StateAuthenticated, user) {
		lg.Info("session_init_superseded", slog.String("op", op))
		return nil
	}
	lg.Info("session_init_authenticated",
		slog.String("op", op),
		slog.String("user", redact.Username(user.Username)),
	)

	return nil
}

// Login обменивает логин/пароль на пару токенов и сохраняет её.
// При ошибке хранилище не меняется, а ошибка оборачивает
// ErrInvalidCredentials или ErrNetworkFailure.
func (m *Manager) Login(ctx context.Context, username, password string) (models.UserSummary, error) {
	const op = "session.Login"

	lg := log.From(ctx)

	resp, err := m.auth.Login(ctx, username, password)
	if err != nil {
		kind, result := ErrNetworkFailure, ResultNetworkFailure
		if errors.Is(err, authapi.ErrUnauthorized) {
			kind, result = ErrInvalidCredentials, ResultInvalidCredentials
		}

		m.metrics.LoginAttempt(result)
		lg.Warn("session_login_failed",
			slog.String("op", op),
			slog.String("user", redact.Username(username)),
			slog.String("err", err.Error()),
		)

		return models.UserSummary{}, fmt.Errorf("%s: %w: %w", op, kind, err)
	}

	user := resp.User
	if user.IsZero() {
		if u, uerr := token.User(resp.AccessToken); uerr == nil {
			user = u
		}
	}

	pair := &models.CredentialPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         user,
	}

	// Эпоха сдвигается только после успешной записи: неудачный login
	// не должен отменять refresh текущей сессии.
	m.storeMu.Lock()
	err = m.store.Save(ctx, pair)
	if err == nil {
		m.epoch++
		m.setUser(StateAuthenticated, user)
	}
	m.storeMu.Unlock()

	if err != nil {
		m.metrics.LoginAttempt(ResultFailed)
		return models.UserSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	m.metrics.LoginAttempt(ResultOK)
	lg.Info("session_login", slog.String("op", op), slog.String("user", redact.Username(user.Username)))

	m.notify(Event{Kind: EventLogin, State: StateAuthenticated, User: user, Navigate: RouteHome})

	return user, nil
}

// Logout очищает хранилище и переводит сессию в ANONYMOUS.
// Повторный вызов безопасен: только повторная навигация на /login.
func (m *Manager) Logout(ctx context.Context) error {
	const op = "session.Logout"

	_, err := m.end(ctx, nil, ReasonUser, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("session_logout", slog.String("op", op))

	return nil
}

// AccessToken возвращает годный access-токен, при необходимости
// обновив его. ok=false — сессии нет, запрос уходит без авторизации.
// Ошибка, оборачивающая ErrRefreshFailed, означает, что сессия уже
// принудительно завершена.
func (m *Manager) AccessToken(ctx context.Context) (string, bool, error) {
	const op = "session.AccessToken"

	pair, epoch, err := m.load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}

	return m.accessToken(ctx, pair, epoch)
}

// PrepareRequest возвращает копию req с заголовком Authorization, если
// сессия есть. Без сессии req возвращается как есть. При ошибке обновления
// запрос отправлять нельзя: исходный req не изменяется.
func (m *Manager) PrepareRequest(req *http.Request) (*http.Request, error) {
	access, ok, err := m.AccessToken(req.Context())
	if err != nil {
		return nil, err
	}
	if !ok {
		return req, nil
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+access)

	return out, nil
}

// Invalidate завершает сессию, если сервер отверг ровно тот access-токен,
// который сейчас сохранён. Отказ уже заменённого токена игнорируется.
func (m *Manager) Invalidate(ctx context.Context, rejected string) bool {
	pair, epoch, err := m.load(ctx)
	if err != nil || pair.AccessToken != rejected {
		return false
	}

	return m.forceLogout(ctx, epoch, ReasonUnauthorized, errors.New("access token rejected by server"))
}

// load читает пару вместе с эпохой, в которой она была прочитана.
func (m *Manager) load(ctx context.Context) (*models.CredentialPair, uint64, error) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	pair, err := m.store.Load(ctx)

	return pair, m.epoch, err
}

// accessToken — общая часть AccessToken/Init над уже прочитанной парой.
func (m *Manager) accessToken(ctx context.Context, pair *models.CredentialPair, epoch uint64) (string, bool, error) {
	if !token.Expired(pair.AccessToken, m.now(), m.leeway) {
		return pair.AccessToken, true, nil
	}

	next, err := m.refresh(ctx, pair, epoch)
	if err != nil {
		return "", false, err
	}

	return next.AccessToken, true, nil
}

// refresh обменивает refresh-токен на новую пару.
//
// Особенности:
//   - вызов к серверу не отменяется отменой ctx вызывающего: начатый
//     refresh доводится до конца и его результат сохраняется;
//   - отказ refresh или невозможность сохранить новую пару завершает сессию;
//   - результат refresh пары, прочитанной до login/logout, отбрасывается
//     и чужую сессию не трогает.
func (m *Manager) refresh(ctx context.Context, pair *models.CredentialPair, epoch uint64) (*models.CredentialPair, error) {
	const op = "session.refresh"

	lg := log.From(ctx)
	ctx = context.WithoutCancel(ctx)

	lg.Debug("session_refresh_start", slog.String("op", op))

	tp, err := m.auth.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		m.metrics.RefreshAttempt(ResultFailed)
		if !m.forceLogout(ctx, epoch, ReasonRefreshFailed, err) {
			return nil, fmt.Errorf("%s: %w: %w: %w", op, ErrRefreshFailed, errSuperseded, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, err)
	}

	next := pair.Rotate(*tp)

	m.storeMu.Lock()
	if m.epoch != epoch {
		m.storeMu.Unlock()
		m.metrics.RefreshAttempt(ResultSuperseded)
		lg.Info("session_refresh_superseded", slog.String("op", op))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, errSuperseded)
	}
	err = m.store.Save(ctx, &next)
	m.storeMu.Unlock()

	if err != nil {
		// Старый refresh-токен сервер мог уже погасить: держаться за него нельзя.
		m.metrics.RefreshAttempt(ResultFailed)
		m.forceLogout(ctx, epoch, ReasonRefreshFailed, err)
		return nil, fmt.Errorf("%s: %w: save: %w", op, ErrRefreshFailed, err)
	}

	m.metrics.RefreshAttempt(ResultOK)
	lg.Info("session_refreshed", slog.String("op", op))

	m.mu.RLock()
	state, user := m.state, m.user
	m.mu.RUnlock()
	m.notify(Event{Kind: EventRefresh, State: state, User: user})

	return &next, nil
}

// forceLogout — принудительное завершение сессии, прочитанной в эпоху epoch;
// ошибки очистки только логируются. false — сессию уже сменили login/logout.
func (m *Manager) forceLogout(ctx context.Context, epoch uint64, reason LogoutReason, cause error) bool {
	lg := log.From(ctx)

	ended, err := m.end(context.WithoutCancel(ctx), &epoch, reason, cause)
	if !ended {
		lg.Info("session_forced_logout_skipped", slog.String("reason", string(reason)))
		return false
	}

	lg.Warn("session_forced_logout",
		slog.String("reason", string(reason)),
		slog.String("err", cause.Error()),
	)
	if err != nil {
		lg.Error("session_clear_failed", slog.String("err", err.Error()))
	}

	return true
}

// end очищает хранилище, переводит сессию в ANONYMOUS и уведомляет подписчиков.
// epoch != nil — только если эпоха не сменилась; иначе ended=false.
// Состояние в памяти сбрасывается даже при ошибке хранилища.
func (m *Manager) end(ctx context.Context, epoch *uint64, reason LogoutReason, cause error) (ended bool, err error) {
	m.storeMu.Lock()
	if epoch != nil && *epoch != m.epoch {
		m.storeMu.Unlock()
		return false, nil
	}
	m.epoch++
	err = m.store.Clear(ctx)
	m.setUser(StateAnonymous, models.UserSummary{})
	m.storeMu.Unlock()

	m.metrics.Logout(string(reason))
	m.notify(Event{
		Kind:     EventLogout,
		State:    StateAnonymous,
		Navigate: RouteLogin,
		Reason:   reason,
		Err:      cause,
	})

	return true, err
}

// settle завершает Init: фиксирует итоговое состояние и шлёт EventReady.
// false — за время проверки прошёл login/logout, результат отброшен.
func (m *Manager) settle(epoch uint64, s State, user models.UserSummary) bool {
	m.storeMu.Lock()
	if m.epoch != epoch {
		m.storeMu.Unlock()
		return false
	}
	m.setUser(s, user)
	m.storeMu.Unlock()

	m.notify(Event{Kind: EventReady, State: s, User: user})

	return true
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.metrics.StateChanged(s.String())
	m.mu.Unlock()

	m.stateChanged(s)
}

// setUser атомарно меняет состояние и пользователя.
// Gauge состояния обновляется под тем же замком, что и m.state.
func (m *Manager) setUser(s State, user models.UserSummary) {
	m.mu.Lock()
	m.state = s
	m.user = user
	m.metrics.StateChanged(s.String())
	m.mu.Unlock()

	m.stateChanged(s)
}

func (m *Manager) stateChanged(s State) {
	if s.settled() {
		m.readyOnce.Do(func() { close(m.ready) })
	}
}

func (m *Manager) notify(e Event) {
	m.mu.RLock()
	obs := make([]Observer, 0, len(m.observers))
	for _, o := range m.observers {
		obs = append(obs, o)
	}
	m.mu.RUnlock()

	for _, o := range obs {
		o.OnSessionEvent(e)
	}
}
