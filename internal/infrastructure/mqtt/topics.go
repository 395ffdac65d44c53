package mqtt

import "fmt"

// Topic prefixes for the patient registry.
const (
	// TopicPrefix is the root of every registry topic.
	TopicPrefix = "patientreg"

	// TopicPrefixEvent is the base for domain events.
	TopicPrefixEvent = TopicPrefix + "/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Event types published by the registry.
const (
	// EventPatientRegistered follows every successful registration.
	EventPatientRegistered = "patient_registered"
)

// Topics provides builders for registry MQTT topics.
//
//	topic := mqtt.Topics{}.PatientRegistered()
//	// Returns: "patientreg/event/patient_registered"
type Topics struct{}

// Event returns the topic for a domain event.
//
// Example: patientreg/event/patient_registered
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, eventType)
}

// PatientRegistered returns the registration event topic.
func (t Topics) PatientRegistered() string {
	return t.Event(EventPatientRegistered)
}

// SystemStatus returns the online/offline status topic.
//
// Example: patientreg/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
