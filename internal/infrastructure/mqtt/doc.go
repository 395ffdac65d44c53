// Package mqtt publishes patient registry events to an MQTT broker.
//
// The registry emits one event per successful registration on
// patientreg/event/patient_registered. Payloads carry the patient
// identifier and the registration time only; record contents never
// leave the registry over MQTT.
//
// The client reconnects automatically with exponential backoff and
// announces its presence on patientreg/system/status, with a Last Will
// so subscribers see an unexpected disconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	svc.SetPublisher(mqtt.NewEventPublisher(client))
package mqtt
