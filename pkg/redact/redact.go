// redact предоставляет утилиты безопасного редактирования чувствительных
// данных для логов (логины, токены, пароли). Цель — исключить утечки секретов
// из журналов клиента, сохранив полезный для отладки контекст.
package redact

import "strings"

// Username маскирует имя пользователя: первые два символа (по рунам) + "***".
// Для имён короче трёх символов возвращается "***".
//
// Примеры:
//
//	"alice"  -> "al***"
//	"bo"     -> "***"
//	""       -> "***"
func Username(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= 2 {
		return "***"
	}

	return string(r[:2]) + "***"
}

// Email маскирует e-mail для логирования.
// Строка должна содержать ровно один '@', иначе возвращается "***";
// локальная часть маскируется так же, как Username, домен сохраняется.
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	return Username(s[:i]) + "@" + s[i+1:]
}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return "[REDACTED_TOKEN]" }

// Password возвращает литерал-заглушку для пароля в логах.
func Password() string { return "[REDACTED_PASSWORD]" }

// Bearer маскирует значение заголовка Authorization, сохраняя схему.
//
//	"Bearer eyJ..." -> "Bearer [REDACTED_TOKEN]"
//	""              -> ""
func Bearer(header string) string {
	if header == "" {
		return ""
	}

	scheme, _, found := strings.Cut(header, " ")
	if !found {
		return Token()
	}

	return scheme + " " + Token()
}
