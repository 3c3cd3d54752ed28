package debugbus

import (
	"fmt"

	ceevent "github.com/cloudevents/sdk-go/v2/event"
)

const (
	eventSource     = "ninegrid/debugbus"
	eventTypePrefix = "com.ninegrid.debug."
)

type eventPayload struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CloudEvent wraps an entry in a CloudEvents envelope for wire delivery to
// live debug subscribers.
func (e Entry) CloudEvent() (ceevent.Event, error) {
	ev := ceevent.New()
	ev.SetID(e.ID)
	ev.SetTime(e.Timestamp)
	ev.SetSource(eventSource)
	ev.SetType(eventTypePrefix + string(e.Type))
	if err := ev.SetData(ceevent.ApplicationJSON, eventPayload{Message: e.Message, Details: e.Details}); err != nil {
		return ceevent.Event{}, fmt.Errorf("set event data: %w", err)
	}
	return ev, nil
}
