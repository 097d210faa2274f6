/*
 * This file is part of the thermo-mate distribution (https://github.com/mlipscombe/thermo-mate).
 * Copyright (c) 2024 Mark Lipscombe.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful, but
 * WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 */

package homeassistant

import "fmt"

// EntityType represents the type of Home Assistant entity
type EntityType string

const (
	Sensor       EntityType = "sensor"
	BinarySensor EntityType = "binary_sensor"
	Select       EntityType = "select"
)

// EntityConfig represents a Home Assistant entity configuration
type EntityConfig struct {
	Key            string
	Name           string
	EntityType     EntityType
	EntityCategory string
	DeviceClass    string
	Icon           string
	Unit           string
	StateTopic     string
	CommandTopic   string
	ValueTemplate  string
	Precision      int
	Options        []string
}

// Build creates the MQTT discovery message for this entity
func (e *EntityConfig) Build(id, prefix string, devBlock map[string]interface{}) map[string]interface{} {
	config := map[string]interface{}{
		"name":    e.Name,
		"uniq_id": fmt.Sprintf("thermo_%s_%s", id, e.Key),
		"avty_t":  fmt.Sprintf("%s/status", prefix),
		"dev":     devBlock,
		"stat_t":  resolveTopic(prefix, e.StateTopic),
	}

	if e.EntityCategory != "" {
		config["entity_category"] = e.EntityCategory
	}
	if e.DeviceClass != "" {
		config["device_class"] = e.DeviceClass
	}
	if e.Icon != "" {
		config["ic"] = e.Icon
	}
	if e.Unit != "" {
		config["unit_of_measurement"] = e.Unit
	}
	if e.Precision > 0 {
		config["suggested_display_precision"] = e.Precision
	}
	if e.ValueTemplate != "" {
		config["val_tpl"] = e.ValueTemplate
	}
	if e.CommandTopic != "" {
		config["cmd_t"] = resolveTopic(prefix, e.CommandTopic)
	}

	switch e.EntityType {
	case BinarySensor:
		// State values are published as JSON booleans.
		config["pl_on"] = "true"
		config["pl_off"] = "false"
	case Select:
		config["options"] = e.Options
	}

	return config
}

// resolveTopic treats a leading / as absolute, anything else as relative to
// the prefix.
func resolveTopic(prefix, topic string) string {
	if topic != "" && topic[0] == '/' {
		return topic[1:]
	}
	return fmt.Sprintf("%s/%s", prefix, topic)
}

// GetDiscoveryTopic returns the MQTT discovery topic for this entity
func (e *EntityConfig) GetDiscoveryTopic(id string) string {
	return fmt.Sprintf("homeassistant/%s/thermo_%s/%s/config", e.EntityType, id, e.Key)
}

func stateSensor(key, name, deviceClass, unit string, precision int) EntityConfig {
	return EntityConfig{
		Key:         key,
		Name:        name,
		EntityType:  Sensor,
		DeviceClass: deviceClass,
		Unit:        unit,
		StateTopic:  "state/" + key,
		Precision:   precision,
	}
}

func stateFlag(key, name, deviceClass, category string) EntityConfig {
	return EntityConfig{
		Key:            key,
		Name:           name,
		EntityType:     BinarySensor,
		DeviceClass:    deviceClass,
		EntityCategory: category,
		StateTopic:     "state/" + key,
	}
}

// DeviceEntities describes the controller's per-field state topics.
func DeviceEntities(overrideOptions []string) []EntityConfig {
	vent := stateSensor("vent", "Vent Opening", "", "%", 0)
	vent.Icon = "mdi:valve"
	angle := stateSensor("angle", "Curve Angle", "", "%", 0)
	angle.Icon = "mdi:chart-bell-curve"
	angle.EntityCategory = "diagnostic"

	return []EntityConfig{
		stateSensor("room_temp", "Room Temperature", "temperature", "°C", 1),
		stateSensor("boiler_temp", "Boiler Temperature", "temperature", "°C", 1),
		stateSensor("room_humidity", "Room Humidity", "humidity", "%", 0),
		vent,
		angle,
		stateFlag("relay_output", "Circuit Relay", "running", ""),
		stateFlag("heat_needed", "Heat Needed", "heat", ""),
		stateFlag("overheating", "Overheating", "heat", "diagnostic"),
		stateFlag("underheating", "Underheating", "cold", "diagnostic"),
		stateFlag("safety", "Safety Override", "problem", "diagnostic"),
		{
			Key:          "relay_override",
			Name:         "Circuit Relay Override",
			EntityType:   Select,
			Icon:         "mdi:pump",
			StateTopic:   "state/relay_override",
			CommandTopic: "set/relay_override",
			Options:      overrideOptions,
		},
	}
}

// BridgeEntities describes the single JSON state document published by the
// serial bridge.
func BridgeEntities() []EntityConfig {
	entity := func(key, name string, t EntityType, deviceClass, unit string) EntityConfig {
		return EntityConfig{
			Key:           key,
			Name:          name,
			EntityType:    t,
			DeviceClass:   deviceClass,
			Unit:          unit,
			StateTopic:    "state",
			ValueTemplate: fmt.Sprintf("{{ value_json.%s }}", key),
		}
	}
	relay := entity("circuitRelay", "Circuit Relay", BinarySensor, "running", "")
	relay.ValueTemplate = "{{ value_json.circuitRelay | lower }}"
	heat := entity("heatNeeded", "Heat Needed", BinarySensor, "heat", "")
	heat.ValueTemplate = "{{ value_json.heatNeeded | lower }}"

	return []EntityConfig{
		entity("roomTemp", "Room Temp", Sensor, "temperature", "°C"),
		entity("boilerTemp", "Boiler Temp", Sensor, "temperature", "°C"),
		entity("angle", "Angle", Sensor, "", "%"),
		relay,
		heat,
	}
}
