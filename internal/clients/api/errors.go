package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized — бэкенд требует аутентификации (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden — действие запрещено (403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound — объект не найден или не принадлежит пользователю (404).
	ErrNotFound = errors.New("not found")
	// ErrValidation — бэкенд отверг входные данные (400).
	ErrValidation = errors.New("validation failed")
	// ErrPasswordMismatch — новые пароли не совпадают; запрос не отправлялся.
	ErrPasswordMismatch = errors.New("new passwords do not match")
)

// APIError — не-2xx ответ бэкенда.
// Body — начало тела ответа (обычно JSON в формате DRF).
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message())
}

// Is сопоставляет статус с сентинелами пакета.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Status == http.StatusBadRequest
	}

	return false
}

// Message возвращает человекочитаемое описание ошибки из тела ответа:
// поле "detail" или первую ошибку валидации вида "field: msg".
func (e *APIError) Message() string {
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}

	var fields map[string][]string
	if err := json.Unmarshal([]byte(e.Body), &fields); err == nil && len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if len(fields[k]) == 0 {
				continue
			}
			if k == "non_field_errors" {
				return fields[k][0]
			}
			return k + ": " + strings.Join(fields[k], " ")
		}
	}

	if e.Body != "" {
		return e.Body
	}

	return http.StatusText(e.Status)
}
