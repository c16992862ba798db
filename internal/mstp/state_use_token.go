package mstp

// stepUseToken implements the USE_TOKEN state table. Callers
// hold stateMu.
func (m *Master) stepUseToken() (bool, error) {
	fr, ok := m.toSend.pop()
	if !ok {
		m.frameCount = m.getMaxInfoFrames()
		m.transition(StateDoneWithToken)
		return true, nil
	}

	if err := m.out.SendFrame(fr); err != nil {
		return false, err
	}
	m.rx.markActivity()
	m.frameCount++

	switch fr.Type {
	case FrameBACnetDataNotExpectingReply, FrameTestResponse:
		m.transition(StateDoneWithToken)
	case FrameBACnetDataExpectingReply, FrameTestRequest:
		m.transition(StateWaitForReply)
	default:
		m.transition(StateDoneWithToken)
	}
	return true, nil
}
