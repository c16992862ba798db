package mstp

// stepWaitForReply implements the WAIT_FOR_REPLY state table. Callers
// hold stateMu.
func (m *Master) stepWaitForReply() (bool, error) {
	if m.rx.silence() > ReplyTimeout {
		m.frameCount = m.getMaxInfoFrames()
		m.transition(StateDoneWithToken)
		return true, nil
	}

	if m.rx.takeInvalid() {
		m.transition(StateDoneWithToken)
		return true, nil
	}

	fr, ok := m.rx.takeValid()
	if !ok {
		return false, nil
	}

	if !fr.ForStation(m.thisStation) {
		m.transition(StateIdle)
		return true, nil
	}

	switch fr.Type {
	case FrameBACnetDataExpectingReply, FrameBACnetDataNotExpectingReply, FrameTestResponse:
		if m.hooks.DataNoReply != nil {
			m.hooks.DataNoReply(fr)
		}
		m.transition(StateDoneWithToken)
	case FrameReplyPostponed:
		m.transition(StateDoneWithToken)
	default:
		m.transition(StateIdle)
	}
	return true, nil
}
