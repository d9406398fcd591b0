// rest — общий JSON-хелпер для REST-клиентов бэкенда Pixsort.
// Кодирует тело запроса, проверяет статус, декодирует ответ.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody — сколько байт тела ошибки сохраняется в StatusError.
const maxErrorBody = 4 << 10

// ErrDecode — тело ответа не соответствует ожидаемому JSON.
var ErrDecode = errors.New("decode response")

// StatusError — бэкенд ответил не-2xx статусом.
// Body — начало тела ответа (обычно JSON с ошибками валидации).
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}

	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Endpoint склеивает базовый URL и путь эндпоинта без потери завершающего '/'.
func Endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// NewRequest собирает запрос с JSON-телом (in может быть nil).
func NewRequest(ctx context.Context, method, url string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do выполняет запрос и декодирует JSON-ответ в out (out может быть nil).
//
// Ошибки:
//   - транспортная ошибка возвращается как есть (обёрнутая);
//   - не-2xx — *StatusError;
//   - битый JSON — ErrDecode.
func Do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return nil
}

// StatusCode возвращает код из *StatusError в цепочке err (или 0).
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}

	return 0
}
