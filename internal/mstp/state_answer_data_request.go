package mstp

import "github.com/gocomm/mstp-gateway/internal/metrics"

// stepAnswerDataRequest implements the ANSWER_DATA_REQUEST state table.
// Reply delivery is evaluated under the same lock used by SetReplyFrame,
// so a concurrently arriving reply is never lost to a race against this
// check. Callers hold stateMu.
func (m *Master) stepAnswerDataRequest() (bool, error) {
	if fr, ok := m.reply.take(); ok {
		if err := m.out.SendFrame(fr); err != nil {
			return false, err
		}
		m.rx.markActivity()
		m.transition(StateIdle)
		return true, nil
	}

	nowMs := m.now()
	if nowMs > m.replyDeadline {
		if err := m.out.SendFrame(Frame{Type: FrameReplyPostponed, Destination: m.replySource, Source: m.thisStation}); err != nil {
			return false, err
		}
		metrics.IncReplyPostponed()
		m.rx.markActivity()
		m.transition(StateIdle)
		return true, nil
	}

	if m.replyDeadline-nowMs > ReplyDelay {
		m.clampReplyDeadline()
	}
	return false, nil
}
