package mstp

import (
	"time"

	events "github.com/docker/go-events"
)

// StateChange is published through the configured event sink on every
// master state transition. Consumers include logging,
// metrics, and tests asserting on a transition sequence.
type StateChange struct {
	Station uint8
	From    MasterState
	To      MasterState
	At      time.Time
}

// discardSink is installed by default so a Master with no subscribers never
// blocks on event delivery.
type discardSink struct{}

func (discardSink) Write(events.Event) error { return nil }
func (discardSink) Close() error             { return nil }

// NewEventBroadcaster returns a Broadcaster a Master can publish StateChange
// events to; attach additional sinks with Add before wiring it into a
// Master, and Close it on shutdown.
func NewEventBroadcaster() *events.Broadcaster {
	return events.NewBroadcaster(discardSink{})
}

// publish writes a StateChange to m's sink, ignoring delivery errors: event
// distribution is diagnostic and must never affect protocol correctness.
func (m *Master) publish(from, to MasterState) {
	if m.sink == nil {
		return
	}
	_ = m.sink.Write(StateChange{
		Station: m.thisStation,
		From:    from,
		To:      to,
		At:      time.Unix(0, m.clock.NowMillis()*int64(time.Millisecond)),
	})
}
