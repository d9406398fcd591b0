// session — менеджер клиентской сессии Pixsort.
//
// Manager держит текущую пару учётных данных (access + refresh), перед каждым
// исходящим запросом решает, годен ли access-токен, при истечении молча
// обновляет его и принудительно завершает сессию, если обновление не удалось.
//
// Жизненный цикл (Init):
//
//	UNINITIALIZED -> CHECKING -> {AUTHENTICATED, ANONYMOUS}
//
// Потребители (роутинг демона, API-клиент) не должны отдавать защищённые
// данные, пока состояние не покинуло CHECKING (см. Manager.Ready).
//
// Конкурентность:
//   - Manager безопасен для использования из разных горутин;
//   - mu защищает состояние в памяти и никогда не удерживается во время I/O;
//   - storeMu сериализует записи в хранилище и ведёт "эпоху" сессии: refresh,
//     начатый до logout/login, не может воскресить завершённую сессию;
//   - одновременные запросы с истёкшим токеном обновляют его независимо
//     (без single-flight): при гонке побеждает последний записанный ответ,
//     уже отправленные со старым токеном запросы не повторяются.
package session
