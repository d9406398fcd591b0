// authapi — клиент auth-эндпоинтов бэкенда Pixsort: логин, обновление
// токенов и проверка личности ("кто я").
//
// Клиент намеренно работает поверх "голого" http.Client, а не сессионного
// транспорта: обновление токенов не должно рекурсивно проходить через
// перехватчик, который само же и вызывает.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pribylovaa/pixsort-client/internal/clients/rest"
	"github.com/pribylovaa/pixsort-client/internal/models"
)

// Пути эндпоинтов (с завершающим '/', как у бэкенда).
const (
	PathLogin   = "/api/auth/login/"
	PathRefresh = "/api/auth/token/refresh/"
	PathUser    = "/api/auth/user/"
)

var (
	// ErrUnauthorized — сервер отверг учётные данные или токен (400/401/403).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse — ответ 2xx, но тело не соответствует контракту.
	ErrMalformedResponse = errors.New("malformed response")
)

// Client — клиент auth API.
type Client struct {
	baseURL   string
	hc        *http.Client
	userAgent string
}

// Options — необязательные параметры клиента.
type Options struct {
	// HTTPClient — транспорт; по умолчанию http.DefaultClient.
	HTTPClient *http.Client
	// UserAgent — значение заголовка User-Agent (пустое — не выставляется).
	UserAgent string
}

// New создаёт клиент для бэкенда по адресу baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	const op = "clients.authapi.New"

	if baseURL == "" {
		return nil, fmt.Errorf("%s: empty base url", op)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{baseURL: baseURL, hc: hc, userAgent: opts.UserAgent}, nil
}

// Login обменивает логин/пароль на пару токенов и пользователя.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	const op = "clients.authapi.Login"

	var out models.LoginResponse
	in := models.LoginRequest{Username: username, Password: password}
	if err := c.call(ctx, http.MethodPost, PathLogin, "", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("%s: %w: missing tokens", op, ErrMalformedResponse)
	}

	return &out, nil
}

// Refresh обменивает refresh-токен на новую пару.
// RefreshToken в ответе пуст, если сервер не ротирует refresh-токены.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "clients.authapi.Refresh"

	var out models.TokenPair
	in := models.RefreshRequest{Refresh: refreshToken}
	if err := c.call(ctx, http.MethodPost, PathRefresh, "", in, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w: missing access token", op, ErrMalformedResponse)
	}

	return &out, nil
}

// CurrentUser возвращает пользователя, которому принадлежит accessToken.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (models.UserSummary, error) {
	const op = "clients.authapi.CurrentUser"

	var out models.UserSummary
	if err := c.call(ctx, http.MethodGet, PathUser, accessToken, nil, &out); err != nil {
		return models.UserSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	if out.IsZero() {
		return models.UserSummary{}, fmt.Errorf("%s: %w: empty user", op, ErrMalformedResponse)
	}

	return out, nil
}

func (c *Client) call(ctx context.Context, method, path, bearer string, in, out any) error {
	req, err := rest.NewRequest(ctx, method, rest.Endpoint(c.baseURL, path), in)
	if err != nil {
		return err
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	err = rest.Do(c.hc, req, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rest.ErrDecode):
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch rest.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return err
}
