package session

// State — состояние жизненного цикла сессии.
type State int

const (
	StateUninitialized State = iota
	StateChecking
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// settled — состояние, в котором потребителям можно отдавать данные.
func (s State) settled() bool {
	return s == StateAuthenticated || s == StateAnonymous
}
