// metrics — Prometheus-реализация хуков session.Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pixsort"

// Session — счётчики и gauge состояния сессии.
type Session struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   *prometheus.CounterVec
	state     *prometheus.GaugeVec
}

// States — все значения label "state"; ровно одно из них равно 1.
var States = []string{"uninitialized", "checking", "authenticated", "anonymous"}

// NewSession создаёт коллекторы и регистрирует их в reg
// (nil — prometheus.DefaultRegisterer).
func NewSession(reg prometheus.Registerer) (*Session, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Session{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_attempts_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Session terminations by reason.",
		}, []string{"reason"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session lifecycle state (1 for the active state).",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{m.logins, m.refreshes, m.logouts, m.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	m.StateChanged("uninitialized")

	return m, nil
}

func (m *Session) LoginAttempt(result string)   { m.logins.WithLabelValues(result).Inc() }
func (m *Session) RefreshAttempt(result string) { m.refreshes.WithLabelValues(result).Inc() }
func (m *Session) Logout(reason string)         { m.logouts.WithLabelValues(reason).Inc() }

// StateChanged выставляет 1 для state и 0 для остальных состояний.
func (m *Session) StateChanged(state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}
