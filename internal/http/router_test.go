package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/pixsort-client/internal/clients"
	"github.com/pribylovaa/pixsort-client/internal/config"
	"github.com/pribylovaa/pixsort-client/internal/fakeapi"
	"github.com/pribylovaa/pixsort-client/internal/models"
	"github.com/pribylovaa/pixsort-client/internal/session"
)

type daemon struct {
	backend *fakeapi.Server
	cl      *clients.Clients
	srv     *httptest.Server
}

type envelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

// newDaemon поднимает фейковый бэкенд и демон поверх него
// (хранилище в памяти, Init уже выполнен).
func newDaemon(t *testing.T) *daemon {
	t.Helper()

	backend := fakeapi.New()
	t.Cleanup(backend.Close)
	backend.AddUser("alice", "correctpw")
	backend.AddUser("bob", "bobpw")

	cfg := config.Config{
		Env:      "local",
		API:      config.APIConfig{BaseURL: backend.URL, UserAgent: "pixsort-test"},
		Store:    config.StoreConfig{Kind: config.StoreMemory},
		Timeouts: config.TimeoutConfig{Request: 5 * time.Second, Upstream: 5 * time.Second},
	}

	lg := slog.New(slog.NewTextHandler(io.Discard, nil))

	cl, err := clients.New(context.Background(), cfg, clients.Deps{Logger: lg})
	require.NoError(t, err)
	require.NoError(t, cl.Session.Init(context.Background()))

	srv := httptest.NewServer(NewRouter(cl, Options{
		Logger:      lg,
		Timeout:     cfg.Timeouts.Request,
		CORSOrigins: []string{"http://localhost:3000"},
	}))
	t.Cleanup(srv.Close)

	return &daemon{backend: backend, cl: cl, srv: srv}
}

func (d *daemon) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, d.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return d.send(t, req)
}

func (d *daemon) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := d.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func (d *daemon) login(t *testing.T, username, password string) {
	t.Helper()

	resp, raw := d.do(t, http.MethodPost, "/session/login", models.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestSession_AnonymousByDefault(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	resp, raw := d.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[models.SessionView](t, raw)
	require.Equal(t, "anonymous", view.State)
	require.Nil(t, view.User)
}

func TestGuarded_Anonymous_401(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	for _, path := range []string{"/gallery", "/gallery/animals", "/stats", "/profile", "/purchases", "/images/1"} {
		resp, raw := d.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		env := decode[envelope](t, raw)
		require.Equal(t, "unauthenticated", env.Error.Code)
		require.NotEmpty(t, env.Error.RequestID)
		require.Equal(t, resp.Header.Get("X-Request-Id"), env.Error.RequestID)
	}

	// Бэкенд не видел ни одного авторизованного запроса.
	require.Empty(t, d.backend.LastAuthorization())
}

func TestLogin_OK_NavigatesHome(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	resp, raw := d.do(t, http.MethodPost, "/session/login", models.LoginRequest{Username: "alice", Password: "correctpw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[models.SessionView](t, raw)
	require.Equal(t, "authenticated", view.State)
	require.Equal(t, "/", view.Navigate)
	require.NotNil(t, view.User)
	require.Equal(t, "alice", view.User.Username)

	_, raw = d.do(t, http.MethodGet, "/session", nil)
	view = decode[models.SessionView](t, raw)
	require.Equal(t, "authenticated", view.State)
	require.Equal(t, "alice", view.User.Username)
}

func TestLogin_WrongPassword_401WithUserMessage(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	resp, raw := d.do(t, http.MethodPost, "/session/login", models.LoginRequest{Username: "alice", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env := decode[envelope](t, raw)
	require.Equal(t, "invalid_credentials", env.Error.Code)
	require.Equal(t, "Login failed! Please check your username and password.", env.Error.Message)
	require.Equal(t, session.StateAnonymous, d.cl.Session.State())
}

func TestLogin_BackendDown_502(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.backend.FailNextLogins(1)

	resp, raw := d.do(t, http.MethodPost, "/session/login", models.LoginRequest{Username: "alice", Password: "correctpw"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "upstream_unavailable", decode[envelope](t, raw).Error.Code)
}

func TestLogin_InvalidBody_400(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	resp, raw := d.do(t, http.MethodPost, "/session/login", map[string]string{"username": "alice", "pass": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_argument", decode[envelope](t, raw).Error.Code)

	resp, _ = d.do(t, http.MethodPost, "/session/login", models.LoginRequest{Username: "alice"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout_NavigatesToLogin_Idempotent(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.login(t, "alice", "correctpw")

	for i := 0; i < 2; i++ {
		resp, raw := d.do(t, http.MethodPost, "/session/logout", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		view := decode[models.SessionView](t, raw)
		require.Equal(t, "anonymous", view.State)
		require.Equal(t, "/login", view.Navigate)
	}

	resp, _ := d.do(t, http.MethodGet, "/gallery", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignup_CreatedThenDuplicate(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	resp, raw := d.do(t, http.MethodPost, "/signup", models.SignupRequest{Username: "carol", Email: "c@example.com", Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "carol", decode[models.UserSummary](t, raw).Username)

	resp, raw = d.do(t, http.MethodPost, "/signup", models.SignupRequest{Username: "carol", Password: "pw"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decode[envelope](t, raw)
	require.Equal(t, "invalid_argument", env.Error.Code)
	require.Equal(t, "username: A user with that username already exists.", env.Error.Message)
}

func TestPublicImages_NoSession(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.backend.SeedImage("bob", models.Image{ImageFile: "/media/images/sea.jpg", IsPublic: true})
	d.backend.SeedImage("bob", models.Image{ImageFile: "/media/images/private.jpg"})

	resp, raw := d.do(t, http.MethodGet, "/public-images", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	imgs := decode[[]models.Image](t, raw)
	require.Len(t, imgs, 1)
	require.Equal(t, "/media/images/sea.jpg", imgs[0].ImageFile)
}

func TestGallery_GroupedPreview(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	for i := 0; i < 5; i++ {
		d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Animals"}, DetailedLabels: []string{"cat"}})
	}
	d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Food"}, DetailedLabels: []string{"pizza"}})
	d.backend.SeedImage("alice", models.Image{})
	d.backend.SeedImage("bob", models.Image{GeneralCategories: []string{"Cars"}})
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodGet, "/gallery", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	groups := decode[[]models.CategoryGroup](t, raw)
	require.Len(t, groups, 3)
	require.Equal(t, "Animals", groups[0].Category)
	require.Len(t, groups[0].Images, 3)
	require.Equal(t, "Food", groups[1].Category)
	require.Equal(t, "Uncategorized", groups[2].Category)

	// Поиск по меткам.
	_, raw = d.do(t, http.MethodGet, "/gallery?search=pizza", nil)
	groups = decode[[]models.CategoryGroup](t, raw)
	require.Len(t, groups, 1)
	require.Equal(t, "Food", groups[0].Category)
}

func TestGallery_Empty_IsArray(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodGet, "/gallery", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(raw))
}

func TestGalleryCategory_TitleCasedAndComplete(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	for i := 0; i < 5; i++ {
		d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Animals"}})
	}
	d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Food"}})
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodGet, "/gallery/animals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	group := decode[models.CategoryGroup](t, raw)
	require.Equal(t, "Animals", group.Category)
	require.Len(t, group.Images, 5)
}

func TestUpload_Multipart(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.backend.Categorize("dog.jpg", "Animals")
	d.login(t, "alice", "correctpw")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image_file", "dog.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("\xff\xd8\xff fake jpeg"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, d.srv.URL+"/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, raw := d.send(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	img := decode[models.Image](t, raw)
	require.NotZero(t, img.ID)
	require.Equal(t, []string{"Animals"}, img.GeneralCategories)
	require.Equal(t, "alice", img.OwnerUsername)
}

func TestUpload_MissingFile_400(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.login(t, "alice", "correctpw")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "no file"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, d.srv.URL+"/images", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, raw := d.send(t, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "image_file is required", decode[envelope](t, raw).Error.Message)
}

func TestImage_GetPatchDelete(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	img := d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Nature"}})
	other := d.backend.SeedImage("bob", models.Image{})
	d.login(t, "alice", "correctpw")

	path := "/images/" + itoa(img.ID)

	resp, raw := d.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, img.ID, decode[models.Image](t, raw).ID)

	resp, raw = d.do(t, http.MethodPatch, path, models.VisibilityRequest{IsPublic: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decode[models.Image](t, raw).IsPublic)

	resp, _ = d.do(t, http.MethodGet, "/images/"+itoa(other.ID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = d.do(t, http.MethodGet, "/images/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = d.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = d.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarketplace_PurchaseFlow(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	forSale := d.backend.SeedImage("bob", models.Image{IsPublic: true, Title: "Sunset", Price: "9.99"})
	own := d.backend.SeedImage("alice", models.Image{IsPublic: true})
	d.login(t, "alice", "correctpw")

	_, raw := d.do(t, http.MethodGet, "/marketplace", nil)
	listed := decode[[]models.Image](t, raw)
	require.Len(t, listed, 1)
	require.Equal(t, forSale.ID, listed[0].ID)

	resp, raw := d.do(t, http.MethodPost, "/images/"+itoa(own.ID)+"/purchase", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "You cannot buy your own image.", decode[envelope](t, raw).Error.Message)

	resp, _ = d.do(t, http.MethodPost, "/images/"+itoa(forSale.ID)+"/purchase", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, raw = d.do(t, http.MethodGet, "/purchases", nil)
	bought := decode[[]models.Image](t, raw)
	require.Len(t, bought, 1)
	require.Equal(t, forSale.ID, bought[0].ID)

	_, raw = d.do(t, http.MethodGet, "/marketplace", nil)
	require.JSONEq(t, `[]`, string(raw))
}

func TestStats(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Animals"}})
	d.backend.SeedImage("alice", models.Image{GeneralCategories: []string{"Food"}})
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decode[models.Stats](t, raw)
	require.Equal(t, 2, stats.ImageCount)
	require.Equal(t, 2, stats.CategoryCount)
	require.NotEmpty(t, stats.UserSince)
}

func TestProfile_GetPut(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodPut, "/profile", models.Profile{PaymentDetails: "IBAN DE00 1234"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "IBAN DE00 1234", decode[models.Profile](t, raw).PaymentDetails)

	_, raw = d.do(t, http.MethodGet, "/profile", nil)
	require.Equal(t, "IBAN DE00 1234", decode[models.Profile](t, raw).PaymentDetails)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodPost, "/profile/password", models.PasswordChangeRequest{
		OldPassword: "correctpw", NewPassword1: "a", NewPassword2: "b",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "password_mismatch", decode[envelope](t, raw).Error.Code)

	resp, raw = d.do(t, http.MethodPost, "/profile/password", models.PasswordChangeRequest{
		OldPassword: "wrong", NewPassword1: "newpw", NewPassword2: "newpw",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "old_password: Invalid password.", decode[envelope](t, raw).Error.Message)

	resp, _ = d.do(t, http.MethodPost, "/profile/password", models.PasswordChangeRequest{
		OldPassword: "correctpw", NewPassword1: "newpw", NewPassword2: "newpw",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	d.do(t, http.MethodPost, "/session/logout", nil)
	d.login(t, "alice", "newpw")
}

func TestDeleteAccount_LogsOut(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.login(t, "alice", "correctpw")

	resp, raw := d.do(t, http.MethodDelete, "/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[models.SessionView](t, raw)
	require.Equal(t, "anonymous", view.State)
	require.Equal(t, "/login", view.Navigate)
	require.Equal(t, session.StateAnonymous, d.cl.Session.State())

	resp, _ = d.do(t, http.MethodPost, "/session/login", models.LoginRequest{Username: "alice", Password: "correctpw"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredSession_RefreshRejected_401AndLoggedOut(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.backend.SetAccessTTL(-time.Minute)
	d.login(t, "alice", "correctpw")
	d.backend.RevokeAll()

	resp, raw := d.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env := decode[envelope](t, raw)
	require.Equal(t, "session_expired", env.Error.Code)
	require.Equal(t, "Your session has expired. Please log in again.", env.Error.Message)

	_, raw = d.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, "anonymous", decode[models.SessionView](t, raw).State)
}

func TestExpiredSession_RefreshedTransparently(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)
	d.backend.SetAccessTTL(-time.Minute)
	d.login(t, "alice", "correctpw")
	d.backend.SetAccessTTL(time.Minute)

	resp, _ := d.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, d.backend.RefreshCalls())
}

func TestUnknownRoute_404(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	resp, _ := d.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	req, err := http.NewRequest(http.MethodOptions, d.srv.URL+"/session/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, _ := d.send(t, req)
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodOptions, d.srv.URL+"/session/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, _ = d.send(t, req)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func readEvent(t *testing.T, conn *websocket.Conn) models.SessionEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	typ, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)

	return decode[models.SessionEvent](t, raw)
}

func TestSessionEvents_StreamsLoginAndLogout(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(d.srv.URL, "http")+"/session/events", nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	ev := readEvent(t, conn)
	require.Equal(t, "snapshot", ev.Kind)
	require.Equal(t, "anonymous", ev.State)

	d.login(t, "alice", "correctpw")

	ev = readEvent(t, conn)
	require.Equal(t, "login", ev.Kind)
	require.Equal(t, "authenticated", ev.State)
	require.Equal(t, "/", ev.Navigate)
	require.NotNil(t, ev.User)
	require.Equal(t, "alice", ev.User.Username)

	d.do(t, http.MethodPost, "/session/logout", nil)

	ev = readEvent(t, conn)
	require.Equal(t, "logout", ev.Kind)
	require.Equal(t, "/login", ev.Navigate)
	require.Equal(t, "user", ev.Reason)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestSessionEvents_ForeignOriginRejected(t *testing.T) {
	t.Parallel()

	d := newDaemon(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(d.srv.URL, "http")+"/session/events", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example.com"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginHosts(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"localhost:3000", "*", "app.pixsort.example.com"},
		originHosts([]string{"http://localhost:3000", "*", "https://app.pixsort.example.com", "::bad"}),
	)
	require.Empty(t, originHosts(nil))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
