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
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Publisher sends a retained message to an absolute topic.
type Publisher interface {
	Publish(topic string, val interface{}) error
}

// PublishDiscovery sends Home Assistant MQTT discovery messages
// Waits for data to be ready before publishing
func PublishDiscovery(pub Publisher, id, prefix string, entities []EntityConfig, ready <-chan bool) {
	log.Infof("Publishing Home Assistant discovery messages for %s", id)

	if ready != nil {
		log.Debug("Waiting for initial data before publishing discovery messages...")
		<-ready
		log.Debug("Initial data ready, publishing discovery messages")
	}

	devBlock := createDeviceBlock(id)

	published := 0
	for _, entity := range entities {
		config := entity.Build(id, prefix, devBlock)
		topic := entity.GetDiscoveryTopic(id)

		if err := pub.Publish(topic, config); err != nil {
			log.Errorf("Error publishing discovery message for %s (%s): %v", entity.Name, entity.Key, err)
			continue
		}
		published++
		log.Debugf("Published discovery for %s at %s", entity.Name, topic)
	}

	log.Infof("Published %d entity discovery messages", published)
}

func createDeviceBlock(id string) map[string]interface{} {
	return map[string]interface{}{
		"ids":  []string{fmt.Sprintf("thermo_%s", id)},
		"name": fmt.Sprintf("Thermo Mate (%s)", id),
		"sw":   "thermo-mate",
		"mf":   "thermo-mate",
	}
}
