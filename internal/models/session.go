package models

// SessionView — состояние сессии в ответах демона.
// Navigate — куда перейти после операции ("/" после входа, "/login" после выхода).
type SessionView struct {
	State    string       `json:"state"`
	User     *UserSummary `json:"user,omitempty"`
	Navigate string       `json:"navigate,omitempty"`
}

// SessionEvent — событие сессии в потоке /session/events.
// Kind: snapshot (текущее состояние при подключении), ready, login, refresh, logout.
type SessionEvent struct {
	Kind     string       `json:"kind"`
	State    string       `json:"state"`
	User     *UserSummary `json:"user,omitempty"`
	Navigate string       `json:"navigate,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}
