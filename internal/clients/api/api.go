// api — типизированный клиент REST API бэкенда Pixsort (галерея, загрузка,
// маркетплейс, профиль).
//
// Все запросы идут через переданный http.Client; в рабочей сборке его
// транспорт — session.Transport, поэтому Authorization выставляется и
// токен обновляется прозрачно для этого пакета.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pribylovaa/pixsort-client/internal/clients/rest"
	"github.com/pribylovaa/pixsort-client/internal/models"
)

// Пути эндпоинтов.
const (
	PathSignup         = "/api/signup/"
	PathUpload         = "/api/upload/"
	PathImages         = "/api/images/"
	PathPublicImages   = "/api/public-images/"
	PathMarketplace    = "/api/marketplace/"
	PathMyPurchases    = "/api/my-purchases/"
	PathStats          = "/api/stats/"
	PathProfile        = "/api/profile/"
	PathPasswordChange = "/api/auth/password/change/"
	PathUserDelete     = "/api/user/delete/"

	// UploadField — имя multipart-поля с файлом.
	UploadField = "image_file"
)

// Client — клиент Pixsort API.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New создаёт клиент. hc == nil — http.DefaultClient (без сессии).
func New(baseURL string, hc *http.Client) (*Client, error) {
	const op = "clients.api.New"

	if baseURL == "" {
		return nil, fmt.Errorf("%s: empty base url", op)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{baseURL: baseURL, hc: hc}, nil
}

// Signup регистрирует нового пользователя.
func (c *Client) Signup(ctx context.Context, in models.SignupRequest) (models.UserSummary, error) {
	const op = "clients.api.Signup"

	var out models.UserSummary
	if err := c.call(ctx, http.MethodPost, PathSignup, in, &out); err != nil {
		return models.UserSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Upload загружает изображение; бэкенд возвращает его с категориями и метками.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (models.Image, error) {
	const op = "clients.api.Upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return models.Image{}, fmt.Errorf("%s: read file: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rest.Endpoint(c.baseURL, PathUpload), &buf)
	if err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out models.Image
	if err := c.do(req, &out); err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ListImages возвращает изображения пользователя с необязательными
// фильтрами по категории и поиску по меткам.
func (c *Client) ListImages(ctx context.Context, f models.ImageFilter) ([]models.Image, error) {
	const op = "clients.api.ListImages"

	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}

	path := PathImages
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []models.Image
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// GetImage возвращает изображение пользователя по id.
func (c *Client) GetImage(ctx context.Context, id int64) (models.Image, error) {
	const op = "clients.api.GetImage"

	var out models.Image
	if err := c.call(ctx, http.MethodGet, imagePath(id), nil, &out); err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// SetVisibility публикует изображение или скрывает его.
func (c *Client) SetVisibility(ctx context.Context, id int64, public bool) (models.Image, error) {
	const op = "clients.api.SetVisibility"

	var out models.Image
	if err := c.call(ctx, http.MethodPatch, imagePath(id), models.VisibilityRequest{IsPublic: public}, &out); err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// DeleteImage удаляет изображение пользователя.
func (c *Client) DeleteImage(ctx context.Context, id int64) error {
	const op = "clients.api.DeleteImage"

	if err := c.call(ctx, http.MethodDelete, imagePath(id), nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PublicImages — публичная лента (доступна без входа).
func (c *Client) PublicImages(ctx context.Context) ([]models.Image, error) {
	const op = "clients.api.PublicImages"

	var out []models.Image
	if err := c.call(ctx, http.MethodGet, PathPublicImages, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Marketplace — чужие публичные изображения, ещё не купленные пользователем.
func (c *Client) Marketplace(ctx context.Context) ([]models.Image, error) {
	const op = "clients.api.Marketplace"

	var out []models.Image
	if err := c.call(ctx, http.MethodGet, PathMarketplace, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Purchase покупает изображение с маркетплейса.
func (c *Client) Purchase(ctx context.Context, id int64) error {
	const op = "clients.api.Purchase"

	if err := c.call(ctx, http.MethodPost, imagePath(id)+"purchase/", nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MyPurchases — купленные пользователем изображения.
func (c *Client) MyPurchases(ctx context.Context) ([]models.Image, error) {
	const op = "clients.api.MyPurchases"

	var out []models.Image
	if err := c.call(ctx, http.MethodGet, PathMyPurchases, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Stats — сводка библиотеки пользователя.
func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	const op = "clients.api.Stats"

	var out models.Stats
	if err := c.call(ctx, http.MethodGet, PathStats, nil, &out); err != nil {
		return models.Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Profile возвращает профиль продавца.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	const op = "clients.api.Profile"

	var out models.Profile
	if err := c.call(ctx, http.MethodGet, PathProfile, nil, &out); err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateProfile сохраняет платёжные реквизиты.
func (c *Client) UpdateProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	const op = "clients.api.UpdateProfile"

	var out models.Profile
	if err := c.call(ctx, http.MethodPut, PathProfile, p, &out); err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ChangePassword меняет пароль. Несовпадение новых паролей проверяется
// локально (ErrPasswordMismatch), запрос в этом случае не отправляется.
func (c *Client) ChangePassword(ctx context.Context, in models.PasswordChangeRequest) error {
	const op = "clients.api.ChangePassword"

	if in.NewPassword1 != in.NewPassword2 {
		return fmt.Errorf("%s: %w", op, ErrPasswordMismatch)
	}

	if err := c.call(ctx, http.MethodPost, PathPasswordChange, in, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteAccount удаляет учётную запись пользователя.
func (c *Client) DeleteAccount(ctx context.Context) error {
	const op = "clients.api.DeleteAccount"

	if err := c.call(ctx, http.MethodDelete, PathUserDelete, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	req, err := rest.NewRequest(ctx, method, rest.Endpoint(c.baseURL, path), in)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

// do выполняет запрос и переводит *rest.StatusError в *APIError.
func (c *Client) do(req *http.Request, out any) error {
	err := rest.Do(c.hc, req, out)

	var se *rest.StatusError
	if errors.As(err, &se) {
		return &APIError{Status: se.Code, Body: se.Body}
	}

	return err
}

func imagePath(id int64) string {
	return PathImages + strconv.FormatInt(id, 10) + "/"
}
