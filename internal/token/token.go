// token декодирует access-токен БЕЗ проверки подписи.
//
// Проверка exp на клиенте носит рекомендательный характер: она лишь экономит
// сетевой вызов с заведомо просроченным токеном. Подпись проверяет сервер,
// и его ответ остаётся единственным источником истины.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pribylovaa/pixsort-client/internal/models"
)

// ErrMalformed — строка не является JWT или payload не декодируется.
var ErrMalformed = errors.New("malformed token")

// Claims — поля payload, которые интересны клиенту.
// user_id бывает как числом, так и строкой — зависит от бэкенда.
type Claims struct {
	UserID   any    `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Parse декодирует payload токена без проверки подписи.
func Parse(raw string) (*Claims, error) {
	const op = "token.Parse"

	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &c); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}

	return &c, nil
}

// ExpiresAt возвращает момент истечения токена.
// ok=false — в токене нет exp (такой токен считается бессрочным).
func ExpiresAt(raw string) (time.Time, bool, error) {
	c, err := Parse(raw)
	if err != nil {
		return time.Time{}, false, err
	}

	if c.ExpiresAt == nil {
		return time.Time{}, false, nil
	}

	return c.ExpiresAt.Time, true, nil
}

// Expired сообщает, нужно ли обновлять токен перед отправкой запроса.
//
// Контракт:
//  1. токен не декодируется — считается просроченным (решит refresh/сервер);
//  2. exp отсутствует — не просрочен;
//  3. иначе просрочен, если now >= exp - leeway.
func Expired(raw string, now time.Time, leeway time.Duration) bool {
	exp, ok, err := ExpiresAt(raw)
	if err != nil {
		return true
	}

	if !ok {
		return false
	}

	return !now.Before(exp.Add(-leeway))
}

// User восстанавливает UserSummary из claims (user_id/username; sub как запасной id).
func User(raw string) (models.UserSummary, error) {
	c, err := Parse(raw)
	if err != nil {
		return models.UserSummary{}, err
	}

	u := models.UserSummary{Username: c.Username}
	u.ID = parseID(c.UserID)
	if u.ID == 0 && c.Subject != "" {
		u.ID = parseID(c.Subject)
	}

	return u, nil
}

func parseID(v any) int64 {
	switch id := v.(type) {
	case float64:
		return int64(id)
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
