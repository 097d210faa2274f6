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

// Command drq-bridge reads DRQ state lines from a controller's serial port
// and republishes them to MQTT as a single JSON document.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	healthz "github.com/klyve/go-healthz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/config"
	"github.com/mlipscombe/thermo-mate/drq"
	"github.com/mlipscombe/thermo-mate/homeassistant"
	"github.com/mlipscombe/thermo-mate/mqtt"
)

type publisher interface {
	Publish(topic string, val interface{}) error
}

// bridge forwards every state the reader yields. ready is signalled after
// the first successful publish.
type bridge struct {
	pub     publisher
	topic   string
	values  *prometheus.GaugeVec
	updates prometheus.Counter
	ready   chan bool
	sent    bool
}

func newBridge(pub publisher, topic string, registerer prometheus.Registerer) *bridge {
	b := &bridge{
		pub:   pub,
		topic: topic,
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "thermo_mate",
			Subsystem: "drq",
			Name:      "value",
			Help:      "Last value reported on the DRQ serial line.",
		}, []string{"tag"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermo_mate",
			Subsystem: "drq",
			Name:      "updates_total",
			Help:      "DRQ state updates forwarded to MQTT.",
		}),
		ready: make(chan bool, 1),
	}
	if registerer != nil {
		registerer.MustRegister(b.values, b.updates)
	}
	return b
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func (b *bridge) forward(s drq.State) error {
	b.values.WithLabelValues(string(drq.TagRoomTemp)).Set(s.RoomTemp)
	b.values.WithLabelValues(string(drq.TagBoilerTemp)).Set(s.BoilerTemp)
	b.values.WithLabelValues(string(drq.TagAngle)).Set(float64(s.Angle))
	b.values.WithLabelValues(string(drq.TagCircuitRelay)).Set(boolGauge(s.CircuitRelay))
	b.values.WithLabelValues(string(drq.TagHeatNeeded)).Set(boolGauge(s.HeatNeeded))

	if err := b.pub.Publish(b.topic, s); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}
	b.updates.Inc()
	if !b.sent {
		b.sent = true
		b.ready <- true
	}
	return nil
}

// run forwards states until the reader is exhausted.
func (b *bridge) run(r *drq.Reader) error {
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := b.forward(s); err != nil {
			log.Error(err)
		}
	}
}

func main() {
	cfg := config.Load()
	cfg.SetupLogging()

	if cfg.SerialPort == "" {
		log.Fatal("A serial port is required")
	}
	port, err := drq.OpenPort(cfg.SerialPort, drq.DefaultBaudRate)
	if err != nil {
		log.Fatalf("Failed to open DRQ port: %v", err)
	}
	defer port.Close()

	mqttURL, err := url.Parse(cfg.MQTTURL)
	if err != nil || cfg.MQTTURL == "" {
		log.Fatalf("Invalid MQTT URL: %s", cfg.MQTTURL)
	}
	prefix := fmt.Sprintf("thermo/%s", cfg.DeviceID)
	if len(mqttURL.Path) > 1 {
		prefix = mqttURL.Path[1:]
	}
	client, err := mqtt.NewClient(mqttURL, fmt.Sprintf("drq-bridge-%s", cfg.DeviceID), prefix)
	if err != nil {
		log.Fatalf("Failed to create MQTT client: %s", err)
	}
	defer client.Close()
	log.Infof("Bridging %s to MQTT broker %s (publishing on \"%s\")", cfg.SerialPort, mqttURL.Host, prefix)

	b := newBridge(client, client.Topic("state"), prometheus.DefaultRegisterer)

	if cfg.HADiscovery {
		go homeassistant.PublishDiscovery(client, cfg.DeviceID, prefix, homeassistant.BridgeEntities(), b.ready)
	}

	if cfg.Bind != "false" {
		go func(listenAddress string) {
			log.Infof("Starting metrics server on %s", listenAddress)
			instance := healthz.Instance{
				Logger:   log.New(),
				Detailed: true,
			}
			r := mux.NewRouter()
			r.Handle("/metrics", promhttp.Handler())
			r.Handle("/healthz", instance.Healthz())
			r.Handle("/liveness", instance.Liveness())
			if err := http.ListenAndServe(listenAddress, r); err != nil {
				log.Errorf("HTTP server error: %v", err)
			}
		}(cfg.Bind)
	}

	if err := b.run(drq.NewReader(port)); err != nil {
		log.Fatalf("Serial read failed: %v", err)
	}
	log.Info("Serial port closed")
}
