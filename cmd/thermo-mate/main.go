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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthz "github.com/klyve/go-healthz"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/config"
	"github.com/mlipscombe/thermo-mate/controller"
	"github.com/mlipscombe/thermo-mate/drq"
	"github.com/mlipscombe/thermo-mate/homeassistant"
	"github.com/mlipscombe/thermo-mate/monitor"
	"github.com/mlipscombe/thermo-mate/mqtt"
	"github.com/mlipscombe/thermo-mate/thermo"
)

const plantStep = time.Second

// determineMQTTPrefix extracts the MQTT prefix from the URL path, or generates one from the device id
func determineMQTTPrefix(mqttURL *url.URL, id string) string {
	if len(mqttURL.Path) > 1 {
		return mqttURL.Path[1:]
	}
	return fmt.Sprintf("thermo/%s", id)
}

// overrideHandler applies relay override commands received over MQTT.
func overrideHandler(ctrl controllerAPI) mqtt.MessageHandler {
	return func(_ *mqtt.Client, msg mqtt.Message) {
		mode, err := thermo.ParseRelayOverride(string(msg.Payload()))
		if err != nil {
			log.Warnf("Ignoring relay override on %s: %v", msg.Topic(), err)
			return
		}
		if err := ctrl.SetRelayOverride(mode); err != nil {
			log.Errorf("Failed to set relay override to %s: %v", mode, err)
			return
		}
		log.Infof("Relay override set to %s over MQTT", mode)
	}
}

func main() {
	cfg := config.Load()
	cfg.SetupLogging()

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	store, err := openEEPROM(cfg.EEPROMPath)
	if err != nil {
		log.Fatalf("Failed to open settings storage: %v", err)
	}
	defer store.Close()

	brd, err := openBoard(profile)
	if err != nil {
		log.Fatalf("Failed to open %s hardware: %v", profile.Backend, err)
	}
	defer brd.Close()

	ctrl, err := controller.New(store, brd.hw, profile.Options())
	if err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	log.Infof("Controller started with %s backend", profile.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if brd.plant != nil {
		go runPlant(ctx, brd.plant, ctrl.Settings, plantStep)
	}

	if cfg.SerialPort != "" {
		port, err := drq.OpenPort(cfg.SerialPort, drq.DefaultBaudRate)
		if err != nil {
			log.Fatalf("Failed to open DRQ port: %v", err)
		}
		defer port.Close()
		ctrl.OnStatus(drq.StartSnapshotWriter(drq.NewWriter(port)))
		log.Infof("Publishing DRQ lines on %s", cfg.SerialPort)
	}

	var client *mqtt.Client
	var prefix string
	if cfg.MQTTURL != "" {
		mqttURL, err := url.Parse(cfg.MQTTURL)
		if err != nil {
			log.Fatalf("Invalid MQTT URL: %s", cfg.MQTTURL)
		}
		prefix = determineMQTTPrefix(mqttURL, cfg.DeviceID)
		client, err = mqtt.NewClient(mqttURL, fmt.Sprintf("thermo-mate-%s", cfg.DeviceID), prefix)
		if err != nil {
			log.Fatalf("Failed to create MQTT client: %s", err)
		}
		defer client.Close()
		log.Infof("Connected to MQTT broker %s (publishing on \"%s\")", mqttURL.Host, prefix)

		if err := client.Subscribe("set/relay_override", 1, overrideHandler(ctrl)); err != nil {
			log.Errorf("Failed to subscribe to set topics: %v", err)
		}
	}

	// a nil *mqtt.Client must not end up inside the interface
	var pub monitor.Publisher
	if client != nil {
		pub = client
	}
	m := monitor.New(pub, cfg.DeviceID, prometheus.DefaultRegisterer)
	ctrl.OnStatus(monitor.StartStateMonitor(m))

	if client != nil && cfg.HADiscovery {
		options := []string{thermo.RelayAuto.Keyword(), thermo.RelayForcedOn.Keyword(), thermo.RelayForcedOff.Keyword()}
		go homeassistant.PublishDiscovery(client, cfg.DeviceID, prefix, homeassistant.DeviceEntities(options), m.Ready())
	}

	if cfg.Bind != "false" {
		go func(listenAddress string) {
			log.Infof("Starting API server on %s", listenAddress)
			instance := &healthz.Instance{
				Logger:   log.New(),
				Detailed: true,
			}
			router := newRouter(&api{ctrl: ctrl, screen: brd.screen}, instance)
			if err := http.ListenAndServe(listenAddress, router); err != nil {
				log.Errorf("HTTP server error: %v", err)
			}
		}(cfg.Bind)
	}

	if err := ctrl.Run(ctx, profile.TickPeriod); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(err)
	}
	log.Info("Shutting down")
}
