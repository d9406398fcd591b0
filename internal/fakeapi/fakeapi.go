// fakeapi — in-process имитация бэкенда Pixsort для тестов клиента.
//
// Поднимает httptest.Server с chi-роутером и теми же путями, что и настоящий
// бэкенд: логин/refresh/"кто я", галерея, загрузка, маркетплейс, профиль.
// Access-токены — настоящие HS256 JWT (user_id, username, exp), поэтому
// клиентская проверка exp работает на них так же, как в бою.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/pixsort-client/internal/models"
)

const secret = "fakeapi-secret"

type user struct {
	models.UserSummary
	password string
	joined   time.Time
	profile  models.Profile
}

// Server — фейковый бэкенд.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	accessTTL time.Duration
	rotate    bool
	// categories — что "анализ" присваивает загруженному файлу по имени;
	// для неизвестных имён — {"Uncategorized"}.
	categories map[string][]string
	users      map[string]*user
	refresh    map[string]string // refresh-токен -> username
	images     map[int64]*imageRec
	nextID     int64
	failLogin  int // сколько следующих логинов ответить 500

	refreshCalls atomic.Int64
	userCalls    atomic.Int64
	lastAuth     atomic.Value // string
	lastUA       atomic.Value // string
}

type imageRec struct {
	models.Image
	owner  string
	buyers map[string]bool
}

// New запускает фейковый бэкенд. Сервер закрывается через t.Cleanup у вызывающего.
func New() *Server {
	s := &Server{
		accessTTL:  time.Minute,
		rotate:     true,
		categories: map[string][]string{},
		users:      map[string]*user{},
		refresh:    map[string]string{},
		images:     map[int64]*imageRec{},
	}
	s.lastAuth.Store("")
	s.lastUA.Store("")
	s.Server = httptest.NewServer(s.router())
	return s
}

// SetAccessTTL задаёт срок жизни выдаваемых access-токенов (по умолчанию минута).
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.mu.Lock()
	s.accessTTL = ttl
	s.mu.Unlock()
}

// SetRotateRefresh включает/выключает выдачу нового refresh-токена при обновлении.
func (s *Server) SetRotateRefresh(on bool) {
	s.mu.Lock()
	s.rotate = on
	s.mu.Unlock()
}

// Categorize задаёт категории, которые получит загруженный файл filename.
func (s *Server) Categorize(filename string, categories ...string) {
	s.mu.Lock()
	s.categories[filename] = categories
	s.mu.Unlock()
}

func (s *Server) ttl() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accessTTL
}

// AddUser регистрирует пользователя напрямую (минуя /api/signup/).
func (s *Server) AddUser(username, password string) models.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addUserLocked(username, password, username+"@example.com")
}

func (s *Server) addUserLocked(username, password, email string) models.UserSummary {
	id := int64(len(s.users) + 1)
	u := &user{
		UserSummary: models.UserSummary{ID: id, Username: username, Email: email},
		password:    password,
		joined:      time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	s.users[username] = u
	return u.UserSummary
}

// IssueAccess выпускает access-токен пользователю с произвольным сроком
// (отрицательный ttl — уже просроченный токен).
func (s *Server) IssueAccess(username string, ttl time.Duration) string {
	s.mu.Lock()
	u := s.users[username]
	s.mu.Unlock()

	var id int64
	if u != nil {
		id = u.ID
	}

	claims := jwt.MapClaims{
		"user_id":  id,
		"username": username,
		"exp":      time.Now().Add(ttl).Unix(),
		"jti":      uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}

	return signed
}

// IssueRefresh выпускает валидный refresh-токен пользователю.
func (s *Server) IssueRefresh(username string) string {
	rt := uuid.NewString()

	s.mu.Lock()
	s.refresh[rt] = username
	s.mu.Unlock()

	return rt
}

// RevokeAll отзывает все refresh-токены (следующий refresh получит 401).
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.refresh = map[string]string{}
	s.mu.Unlock()
}

// FailNextLogins заставляет n следующих логинов ответить 500.
func (s *Server) FailNextLogins(n int) {
	s.mu.Lock()
	s.failLogin = n
	s.mu.Unlock()
}

// RefreshCalls — число обращений к эндпоинту обновления.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// UserCalls — число обращений к эндпоинту "кто я".
func (s *Server) UserCalls() int64 { return s.userCalls.Load() }

// LastAuthorization — заголовок Authorization последнего запроса к API.
func (s *Server) LastAuthorization() string { return s.lastAuth.Load().(string) }

// LastUserAgent — заголовок User-Agent последнего запроса.
func (s *Server) LastUserAgent() string { return s.lastUA.Load().(string) }

// SeedImage добавляет изображение владельцу напрямую.
func (s *Server) SeedImage(owner string, img models.Image) models.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	img.ID = s.nextID
	img.OwnerUsername = owner
	if img.UploadedAt.IsZero() {
		img.UploadedAt = time.Now().UTC()
	}
	s.images[img.ID] = &imageRec{Image: img, owner: owner, buyers: map[string]bool{}}
	return img
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.lastAuth.Store(r.Header.Get("Authorization"))
			s.lastUA.Store(r.UserAgent())
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/api/auth/login/", s.login)
	r.Post("/api/auth/token/refresh/", s.refreshToken)
	r.Post("/api/signup/", s.signup)
	r.Get("/api/public-images/", s.publicImages)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/auth/user/", s.me)
		r.Post("/api/auth/password/change/", s.changePassword)
		r.Post("/api/upload/", s.upload)
		r.Get("/api/images/", s.listImages)
		r.Get("/api/images/{id}/", s.getImage)
		r.Patch("/api/images/{id}/", s.patchImage)
		r.Delete("/api/images/{id}/", s.deleteImage)
		r.Post("/api/images/{id}/purchase/", s.purchase)
		r.Get("/api/marketplace/", s.marketplace)
		r.Get("/api/my-purchases/", s.myPurchases)
		r.Get("/api/stats/", s.stats)
		r.Get("/api/profile/", s.getProfile)
		r.Put("/api/profile/", s.putProfile)
		r.Delete("/api/user/delete/", s.deleteUser)
	})

	return r
}

type ctxUser struct{}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return []byte(secret), nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}

		name, _ := claims["username"].(string)

		s.mu.Lock()
		u := s.users[name]
		s.mu.Unlock()

		if u == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "User not found"})
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r, u.Username)))
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	s.mu.Lock()
	if s.failLogin > 0 {
		s.failLogin--
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "server error"})
		return
	}
	u := s.users[in.Username]
	s.mu.Unlock()

	if u == nil || u.password != in.Password {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Unable to log in with provided credentials."}})
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken:  s.IssueAccess(u.Username, s.ttl()),
		RefreshToken: s.IssueRefresh(u.Username),
		User:         u.UserSummary,
	})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var in models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	s.mu.Lock()
	name, ok := s.refresh[in.Refresh]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}

	s.mu.Lock()
	rotate := s.rotate
	s.mu.Unlock()

	out := models.TokenPair{AccessToken: s.IssueAccess(name, s.ttl())}
	if rotate {
		out.RefreshToken = s.IssueRefresh(name)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.userCalls.Add(1)

	u := s.current(r)
	writeJSON(w, http.StatusOK, u.UserSummary)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var in models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"This field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[in.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}

	u := s.addUserLocked(in.Username, in.Password, in.Email)
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var in models.PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	u := s.current(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.password != in.OldPassword {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"old_password": {"Invalid password."}})
		return
	}
	if in.NewPassword1 != in.NewPassword2 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"new_password2": {"The two password fields didn't match."}})
		return
	}

	u.password = in.NewPassword1
	writeJSON(w, http.StatusOK, map[string]string{"detail": "New password has been saved."})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("image_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"image_file": {"No file was submitted."}})
		return
	}
	defer f.Close()
	_, _ = io.Copy(io.Discard, f)

	s.mu.Lock()
	cats := s.categories[hdr.Filename]
	s.mu.Unlock()
	if len(cats) == 0 {
		cats = []string{"Uncategorized"}
	}

	u := s.current(r)
	img := s.SeedImage(u.Username, models.Image{
		ImageFile:         "/media/images/" + hdr.Filename,
		GeneralCategories: cats,
		DetailedLabels:    []string{strings.ToLower(strings.TrimSuffix(hdr.Filename, ".jpg"))},
	})

	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)
	category := r.URL.Query().Get("category")
	search := r.URL.Query().Get("search")

	out := s.filter(func(rec *imageRec) bool {
		if rec.owner != u.Username {
			return false
		}
		if category != "" && !containsFold(rec.GeneralCategories, category) {
			return false
		}
		if search != "" && !containsFold(rec.DetailedLabels, search) {
			return false
		}
		return true
	})

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) publicImages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.filter(func(rec *imageRec) bool { return rec.IsPublic }))
}

func (s *Server) marketplace(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)
	writeJSON(w, http.StatusOK, s.filter(func(rec *imageRec) bool {
		return rec.IsPublic && rec.owner != u.Username && !rec.buyers[u.Username]
	}))
}

func (s *Server) myPurchases(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)
	writeJSON(w, http.StatusOK, s.filter(func(rec *imageRec) bool { return rec.buyers[u.Username] }))
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedImage(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	img := rec.Image
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, img)
}

func (s *Server) patchImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedImage(w, r)
	if !ok {
		return
	}

	var in models.VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	s.mu.Lock()
	rec.IsPublic = in.IsPublic
	img := rec.Image
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, img)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedImage(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.images, rec.ID)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.images[id]
	if rec == nil || !rec.IsPublic {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if rec.owner == u.Username {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "You cannot buy your own image."})
		return
	}

	rec.buyers[u.Username] = true
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Purchase successful."})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)
	own := s.filter(func(rec *imageRec) bool { return rec.owner == u.Username })

	cats := map[string]struct{}{}
	for _, img := range own {
		for _, c := range img.GeneralCategories {
			cats[c] = struct{}{}
		}
	}

	writeJSON(w, http.StatusOK, models.Stats{
		ImageCount:    len(own),
		CategoryCount: len(cats),
		UserSince:     u.joined.Format("January 2006"),
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)

	s.mu.Lock()
	p := u.profile
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var in models.Profile
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad request"})
		return
	}

	u := s.current(r)

	s.mu.Lock()
	u.profile = in
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, in)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	u := s.current(r)

	s.mu.Lock()
	delete(s.users, u.Username)
	for id, rec := range s.images {
		if rec.owner == u.Username {
			delete(s.images, id)
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ownedImage(w http.ResponseWriter, r *http.Request) (*imageRec, bool) {
	u := s.current(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return nil, false
	}

	s.mu.Lock()
	rec := s.images[id]
	s.mu.Unlock()

	if rec == nil || rec.owner != u.Username {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return nil, false
	}

	return rec, true
}

// filter возвращает копии подходящих изображений, новые — первыми.
func (s *Server) filter(keep func(*imageRec) bool) []models.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Image, 0, len(s.images))
	for _, rec := range s.images {
		if keep(rec) {
			out = append(out, rec.Image)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Server) current(r *http.Request) *user {
	name, _ := r.Context().Value(ctxUser{}).(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.users[name]; u != nil {
		return u
	}

	// Пользователь удалён между middleware и хендлером.
	return &user{UserSummary: models.UserSummary{Username: name}}
}

func containsFold(list []string, needle string) bool {
	for _, v := range list {
		if strings.Contains(strings.ToLower(v), strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
