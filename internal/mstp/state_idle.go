package mstp

import "github.com/gocomm/mstp-gateway/internal/metrics"

// stepIdle implements the IDLE state table. Callers hold
// stateMu.
func (m *Master) stepIdle() (bool, error) {
	if m.rx.silence() >= NoTokenTimeout {
		m.transition(StateNoToken)
		return true, nil
	}

	if m.rx.takeInvalid() {
		return false, nil
	}

	fr, ok := m.rx.takeValid()
	if !ok {
		return false, nil
	}

	if !fr.Type.known() {
		return false, nil
	}

	if fr.Broadcast() {
		switch fr.Type {
		case FrameToken, FrameBACnetDataExpectingReply, FrameTestRequest:
			return false, nil
		}
	}

	switch {
	case fr.ForStation(m.thisStation) && fr.Type == FrameToken:
		m.receivedToken = true
		m.frameCount = 0
		m.soleMaster = false
		metrics.IncTokenReceived()
		m.transition(StateUseToken)
		return true, nil

	case fr.ForStation(m.thisStation) && fr.Type == FramePollForMaster:
		if err := m.out.SendFrame(Frame{Type: FrameReplyToPollForMaster, Destination: fr.Source, Source: m.thisStation}); err == nil {
			m.rx.markActivity()
		}
		return false, nil

	case fr.ForStationOrBroadcast(m.thisStation) && (fr.Type == FrameBACnetDataNotExpectingReply || fr.Type == FrameTestResponse):
		if m.hooks.DataNoReply != nil {
			m.hooks.DataNoReply(fr)
		}
		return false, nil

	case fr.ForStation(m.thisStation) && (fr.Type == FrameBACnetDataExpectingReply || fr.Type == FrameTestRequest):
		if m.hooks.DataNeedingReply != nil {
			m.hooks.DataNeedingReply(fr)
		}
		m.replySource = fr.Source
		m.replyDeadline = m.rx.lastActivity + ReplyDelay
		m.transition(StateAnswerDataRequest)
		return true, nil

	default:
		return false, nil
	}
}
