package models

// UserSummary — минимальная идентичность пользователя: то, что возвращает
// логин и эндпоинт "кто я".
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// IsZero сообщает, что идентичность пустая (пользователь неизвестен).
func (u UserSummary) IsZero() bool {
	return u.ID == 0 && u.Username == ""
}

// CredentialPair — единица состояния сессии. Хранится одной записью
// в персистентном хранилище; отсутствие записи означает "не залогинен".
//
// Описание:
//   - AccessToken — короткоживущий JWT, содержит exp (секунды Unix);
//   - RefreshToken — долгоживущий секрет для обмена на новый access-токен;
//   - User — пользователь, которому выдана пара.
type CredentialPair struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserSummary `json:"user"`
}

// TokenPair — ответ эндпоинта обновления токенов.
// RefreshToken может быть пустым, если сервер не ротирует refresh-токен.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Rotate возвращает новую пару с токенами из tp; пользователь сохраняется,
// а refresh-токен остаётся прежним, если сервер не прислал новый.
func (c CredentialPair) Rotate(tp TokenPair) CredentialPair {
	out := c
	out.AccessToken = tp.AccessToken
	if tp.RefreshToken != "" {
		out.RefreshToken = tp.RefreshToken
	}

	return out
}

// LoginRequest — тело POST /api/auth/login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse — ответ логина: пара токенов и пользователь.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserSummary `json:"user"`
}

// RefreshRequest — тело POST /api/auth/token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}
