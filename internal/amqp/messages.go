package amqp

import (
	"encoding/json"
	"time"

	"financefam/internal/core"
)

// EventMessage is the body published for every ledger event. It carries
// ids only; consumers fetch the record itself from storage.
type EventMessage struct {
	core.Event
	PublishedAt time.Time `json:"publishedAt"`
}

func NewEventMessage(ev core.Event) *EventMessage {
	return &EventMessage{Event: ev, PublishedAt: time.Now().UTC()}
}

// RoutingKey is the event type, so consumers can bind to a subset.
func (m *EventMessage) RoutingKey() string {
	return string(m.Type)
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
