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

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingPublisher struct {
	messages map[string]interface{}
	failOn   string
}

func (p *recordingPublisher) Publish(topic string, val interface{}) error {
	if topic == p.failOn {
		return errors.New("broker gone")
	}
	if p.messages == nil {
		p.messages = make(map[string]interface{})
	}
	p.messages[topic] = val
	return nil
}

func TestBuildSensor(t *testing.T) {
	e := stateSensor("boiler_temp", "Boiler Temperature", "temperature", "°C", 1)
	got := e.Build("cellar", "thermo/cellar", createDeviceBlock("cellar"))

	want := map[string]interface{}{
		"name":                        "Boiler Temperature",
		"uniq_id":                     "thermo_cellar_boiler_temp",
		"avty_t":                      "thermo/cellar/status",
		"dev":                         createDeviceBlock("cellar"),
		"stat_t":                      "thermo/cellar/state/boiler_temp",
		"device_class":                "temperature",
		"unit_of_measurement":         "°C",
		"suggested_display_precision": 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
	if topic := e.GetDiscoveryTopic("cellar"); topic != "homeassistant/sensor/thermo_cellar/boiler_temp/config" {
		t.Errorf("GetDiscoveryTopic() = %s", topic)
	}
}

func TestBuildSelectAndBinarySensor(t *testing.T) {
	var override, relay EntityConfig
	for _, e := range DeviceEntities([]string{"auto", "on", "off"}) {
		switch e.Key {
		case "relay_override":
			override = e
		case "relay_output":
			relay = e
		}
	}

	got := override.Build("x", "thermo/x", nil)
	if got["cmd_t"] != "thermo/x/set/relay_override" {
		t.Errorf("cmd_t = %v", got["cmd_t"])
	}
	if diff := cmp.Diff([]string{"auto", "on", "off"}, got["options"]); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	got = relay.Build("x", "thermo/x", nil)
	if got["pl_on"] != "true" || got["pl_off"] != "false" {
		t.Errorf("binary payloads = %v/%v", got["pl_on"], got["pl_off"])
	}
}

func TestBridgeEntitiesUseJSONState(t *testing.T) {
	for _, e := range BridgeEntities() {
		got := e.Build("b", "thermo/b", nil)
		if got["stat_t"] != "thermo/b/state" {
			t.Errorf("%s stat_t = %v", e.Key, got["stat_t"])
		}
		if got["val_tpl"] == nil {
			t.Errorf("%s has no value template", e.Key)
		}
	}
}

func TestResolveTopic(t *testing.T) {
	if got := resolveTopic("p", "/absolute/topic"); got != "absolute/topic" {
		t.Errorf("resolveTopic absolute = %s", got)
	}
	if got := resolveTopic("p", "state/x"); got != "p/state/x" {
		t.Errorf("resolveTopic relative = %s", got)
	}
}

func TestPublishDiscovery(t *testing.T) {
	entities := DeviceEntities([]string{"auto", "on", "off"})
	pub := &recordingPublisher{failOn: entities[0].GetDiscoveryTopic("cellar")}

	ready := make(chan bool, 1)
	ready <- true
	PublishDiscovery(pub, "cellar", "thermo/cellar", entities, ready)

	if len(pub.messages) != len(entities)-1 {
		t.Errorf("published %d messages, want %d", len(pub.messages), len(entities)-1)
	}
	if _, ok := pub.messages["homeassistant/select/thermo_cellar/relay_override/config"]; !ok {
		t.Error("relay override select was not published")
	}
}
