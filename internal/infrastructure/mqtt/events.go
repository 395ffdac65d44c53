package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// publisher is the subset of Client used for events.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// RegisteredEvent is the payload of a patient_registered message.
// It deliberately carries no record contents.
type RegisteredEvent struct {
	PatientID    string `json:"patient_id"`
	RegisteredAt string `json:"registered_at"`
}

// EventPublisher turns registry notifications into MQTT messages.
// It satisfies patient.Publisher.
type EventPublisher struct {
	pub    publisher
	topics Topics
}

// NewEventPublisher creates an EventPublisher on top of a connected client.
func NewEventPublisher(c *Client) *EventPublisher {
	return &EventPublisher{pub: c}
}

// PatientRegistered publishes a registration event (not retained).
func (p *EventPublisher) PatientRegistered(id string, at time.Time) error {
	payload, err := json.Marshal(RegisteredEvent{
		PatientID:    id,
		RegisteredAt: at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encoding registration event: %w", err)
	}

	if err := p.pub.Publish(p.topics.PatientRegistered(), payload, p.pub.QoS(), false); err != nil {
		return fmt.Errorf("publishing registration event: %w", err)
	}
	return nil
}
