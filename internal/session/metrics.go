package session

// Metrics — хуки наблюдаемости менеджера. Реализация на Prometheus —
// internal/metrics; по умолчанию используется no-op.
type Metrics interface {
	LoginAttempt(result string)
	RefreshAttempt(result string)
	Logout(reason string)
	StateChanged(state string)
}

// Результаты для LoginAttempt/RefreshAttempt.
const (
	ResultOK                 = "ok"
	ResultInvalidCredentials = "invalid_credentials"
	ResultNetworkFailure     = "network_failure"
	ResultFailed             = "failed"
	ResultSuperseded         = "superseded"
)

type nopMetrics struct{}

func (nopMetrics) LoginAttempt(string)   {}
func (nopMetrics) RefreshAttempt(string) {}
func (nopMetrics) Logout(string)         {}
func (nopMetrics) StateChanged(string)   {}
