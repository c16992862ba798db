package mstp

import "github.com/gocomm/mstp-gateway/internal/metrics"

// stepPassToken implements the PASS_TOKEN state table.
// Callers hold stateMu.
func (m *Master) stepPassToken() (bool, error) {
	usageTimeout := m.getUsageTimeout()
	silence := m.rx.silence()

	switch {
	case silence < usageTimeout && m.rx.events() > MinOctets:
		m.transition(StateIdle)
		return true, nil

	case silence >= usageTimeout && m.retryCount < m.retryLimit():
		m.retryCount++
		if err := m.sendToken(m.nextStation); err != nil {
			return false, err
		}
		metrics.IncTokenPassRetry()
		m.rx.resetEventCount()
		return false, nil

	case silence >= usageTimeout && m.retryCount >= m.retryLimit():
		m.pollStation = m.adjacent(m.nextStation)
		if err := m.sendPFM(m.pollStation); err != nil {
			return false, err
		}
		m.nextStation = m.thisStation
		m.resetTokenCounters()
		m.transition(StatePollForMaster)
		return true, nil

	default:
		return false, nil
	}
}
