package mstp

// stepNoToken implements the NO_TOKEN state table. Callers
// hold stateMu.
func (m *Master) stepNoToken() (bool, error) {
	delay := int64(NoTokenTimeout) + SlotTime*int64(m.thisStation)
	silence := m.rx.silence()

	switch {
	case silence < delay && m.rx.events() > MinOctets:
		m.transition(StateIdle)
		return true, nil

	case (silence >= delay && silence < delay+SlotTime) ||
		silence > int64(NoTokenTimeout)+SlotTime*(int64(m.maxMaster)+1):
		m.pollStation = m.adjacent(m.thisStation)
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
