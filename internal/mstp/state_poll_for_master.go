package mstp

import "github.com/gocomm/mstp-gateway/internal/metrics"

// stepPollForMaster implements the POLL_FOR_MASTER state table. Callers
// hold stateMu.
func (m *Master) stepPollForMaster() (bool, error) {
	if fr, ok := m.rx.takeValid(); ok {
		if fr.ForStation(m.thisStation) && fr.Type == FrameReplyToPollForMaster {
			m.soleMaster = false
			m.nextStation = fr.Source
			m.rx.resetEventCount()
			if err := m.sendToken(m.nextStation); err != nil {
				return false, err
			}
			m.pollStation = m.thisStation
			m.resetTokenCounters()
			m.transition(StatePassToken)
			return true, nil
		}
		m.transition(StateIdle)
		return true, nil
	}

	invalid := m.rx.takeInvalid()
	return m.pollForMasterLong(invalid)
}

// pollForMasterLong evaluates the "else" branch of POLL_FOR_MASTER, shared
// by both the receivedInvalidFrame path and the no-activity path; invalid
// forces longCondition true regardless of silence.
func (m *Master) pollForMasterLong(invalid bool) (bool, error) {
	longCondition := invalid || m.rx.silence() >= m.getUsageTimeout()
	if !longCondition {
		return false, nil
	}

	switch {
	case m.soleMaster:
		m.frameCount = 0
		m.transition(StateUseToken)
		return true, nil

	case !m.soleMaster && m.nextStation != m.thisStation:
		m.rx.resetEventCount()
		if err := m.sendToken(m.nextStation); err != nil {
			return false, err
		}
		m.retryCount = 0
		m.transition(StatePassToken)
		return true, nil

	case !m.soleMaster && m.nextStation == m.thisStation && m.adjacent(m.pollStation) != m.thisStation:
		m.pollStation = m.adjacent(m.pollStation)
		if err := m.sendPFM(m.pollStation); err != nil {
			return false, err
		}
		m.retryCount = 0
		return false, nil

	case !m.soleMaster && m.nextStation == m.thisStation && m.adjacent(m.pollStation) == m.thisStation:
		m.receivedToken = true
		m.soleMaster = true
		m.frameCount = 0
		metrics.IncSoleMaster()
		m.transition(StateUseToken)
		return true, nil

	default:
		return false, nil
	}
}
