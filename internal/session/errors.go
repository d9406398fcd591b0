package session

import "errors"

var (
	// ErrInvalidCredentials — логин отвергнут сервером.
	// Состояние хранилища не меняется; ошибка отдаётся вызывающему.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetworkFailure — транспортная ошибка или неожиданный ответ при логине.
	// Состояние хранилища не меняется.
	ErrNetworkFailure = errors.New("network failure")

	// ErrRefreshFailed — refresh-токен невалиден/истёк/отозван либо обмен не
	// удался. Сессия к этому моменту уже принудительно завершена.
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrVerificationFailed — проверка личности при старте отвергнута, хотя
	// токен был. Сессия к этому моменту уже принудительно завершена.
	ErrVerificationFailed = errors.New("verification failed")

	// errSuperseded — пара была прочитана до login/logout; результат
	// операции над ней отброшен.
	errSuperseded = errors.New("session ended during refresh")
)

// UserMessage возвращает безопасный текст для показа пользователю.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Login failed! Please check your username and password."
	case errors.Is(err, ErrNetworkFailure):
		return "Login failed: the server could not be reached. Please try again."
	case errors.Is(err, ErrRefreshFailed):
		return "Your session has expired. Please log in again."
	case errors.Is(err, ErrVerificationFailed):
		return "Your session could not be verified. Please log in again."
	default:
		return "Something went wrong. Please try again."
	}
}
