package main

import (
	"strings"
)

type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type haEntityConfig struct {
	Name             string         `json:"name,omitempty"`
	DeviceClass      string         `json:"device_class"`
	StateTopic       string         `json:"state_topic"`
	UnitOfMeasure    string         `json:"unit_of_measurement,omitempty"`
	ValueTemplate    string         `json:"value_template"`
	UniqueId         string         `json:"unique_id"`
	ExpireAfter      uint           `json:"expire_after,omitempty"`
	StateClass       string         `json:"state_class,omitempty"`
	DisplayPrecision int            `json:"suggested_display_precision,omitempty"`
	EntityCategory   string         `json:"entity_category,omitempty"`
	Device           haDeviceConfig `json:"device"`
}

// haSensor describes one value of the meter's state payload
type haSensor struct {
	Name             string
	DeviceClass      string
	Unit             string
	JSONKey          string
	DisplayPrecision int
	Diagnostic       bool
}

var meterSensors = []haSensor{
	{Name: "Power", DeviceClass: "power", Unit: "W", JSONKey: "watts"},
	{Name: "Current", DeviceClass: "current", Unit: "A", JSONKey: "amps", DisplayPrecision: 2},
	{Name: "Signal Strength", DeviceClass: "signal_strength", Unit: "dBm", JSONKey: "rssi", Diagnostic: true},
	{Name: "Power Min 1h", DeviceClass: "power", Unit: "W", JSONKey: "watts_min_1h"},
	{Name: "Power Max 1h", DeviceClass: "power", Unit: "W", JSONKey: "watts_max_1h"},
}

// haObjectID turns a device name into a Home Assistant object id
func haObjectID(deviceName string) string {
	return strings.ReplaceAll(strings.ToLower(deviceName), " ", "_")
}

// haStateTopic is where the meter publishes its heartbeat state
func haStateTopic(deviceName string) string {
	return "homeassistant/sensor/" + haObjectID(deviceName) + "/state"
}

// discoveryMessages builds the retained discovery config for every meter sensor.
// Entities expire after three missed heartbeats.
func discoveryMessages(deviceName string, heartbeatSeconds uint) ([]MQTTMessage, error) {
	deviceId := haObjectID(deviceName)
	device := haDeviceConfig{
		Identifiers:  []string{deviceId},
		Name:         deviceName,
		Manufacturer: "Custom",
		Model:        "CT energy meter",
		SWVersion:    firmwareVersion,
	}

	msgs := make([]MQTTMessage, 0, len(meterSensors))
	for _, sensor := range meterSensors {
		config := haEntityConfig{
			Name:             sensor.Name,
			DeviceClass:      sensor.DeviceClass,
			StateTopic:       haStateTopic(deviceName),
			UnitOfMeasure:    sensor.Unit,
			ValueTemplate:    "{{ value_json." + sensor.JSONKey + " }}",
			UniqueId:         deviceId + "_" + sensor.JSONKey,
			ExpireAfter:      heartbeatSeconds * 3,
			StateClass:       "measurement",
			DisplayPrecision: sensor.DisplayPrecision,
			Device:           device,
		}
		if sensor.Diagnostic {
			config.EntityCategory = "diagnostic"
		}

		configTopic := "homeassistant/sensor/" + deviceId + "_" + sensor.JSONKey + "/config"
		msg, err := jsonMessage(configTopic, 2, true, config)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
