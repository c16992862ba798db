package mstp

// stepDoneWithToken implements the DONE_WITH_TOKEN state table, evaluated
// as a strict priority ladder. Callers hold stateMu.
func (m *Master) stepDoneWithToken() (bool, error) {
	switch {
	case m.frameCount < m.getMaxInfoFrames():
		m.transition(StateUseToken)
		return true, nil

	case !m.soleMaster && m.nextStation == m.thisStation:
		m.pollStation = m.adjacent(m.thisStation)
		if err := m.sendPFM(m.pollStation); err != nil {
			return false, err
		}
		m.retryCount = 0
		m.transition(StatePollForMaster)
		return true, nil

	case m.tokenCount < PollInterval-1 && m.soleMaster:
		m.frameCount = 0
		m.tokenCount++
		m.transition(StateUseToken)
		return true, nil

	case (m.tokenCount < PollInterval-1 && !m.soleMaster) || m.nextStation == m.adjacent(m.thisStation):
		m.tokenCount++
		if err := m.sendToken(m.nextStation); err != nil {
			return false, err
		}
		m.retryCount = 0
		m.rx.resetEventCount()
		m.transition(StatePassToken)
		return true, nil

	case m.tokenCount >= PollInterval-1 && m.adjacent(m.pollStation) != m.nextStation:
		m.pollStation = m.adjacent(m.pollStation)
		if err := m.sendPFM(m.pollStation); err != nil {
			return false, err
		}
		m.retryCount = 0
		m.transition(StatePollForMaster)
		return true, nil

	case m.tokenCount >= PollInterval-1 && m.adjacent(m.pollStation) == m.nextStation && !m.soleMaster:
		m.pollStation = m.thisStation
		if err := m.sendToken(m.nextStation); err != nil {
			return false, err
		}
		m.resetTokenCounters()
		m.tokenCount = 1
		m.transition(StatePassToken)
		return true, nil

	case m.tokenCount >= PollInterval-1 && m.adjacent(m.pollStation) == m.nextStation && m.soleMaster:
		m.pollStation = m.adjacent(m.nextStation)
		if err := m.sendPFM(m.pollStation); err != nil {
			return false, err
		}
		m.nextStation = m.thisStation
		m.resetTokenCounters()
		m.tokenCount = 1
		m.transition(StatePollForMaster)
		return true, nil

	default:
		// No branch matched: wait for more activity rather than spin.
		return false, nil
	}
}

// resetTokenCounters clears the per-token-hold counters shared by several
// DONE_WITH_TOKEN and PASS_TOKEN/NO_TOKEN branches. Callers that already
// know a token cycle is completing (DONE_WITH_TOKEN's two tokenCount
// rollover branches) overwrite tokenCount with 1 right after calling this.
func (m *Master) resetTokenCounters() {
	m.retryCount = 0
	m.frameCount = 0
	m.tokenCount = 0
	m.rx.resetEventCount()
}
