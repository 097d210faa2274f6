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
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	healthz "github.com/klyve/go-healthz"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/display"
	"github.com/mlipscombe/thermo-mate/monitor"
	"github.com/mlipscombe/thermo-mate/thermo"
)

type controllerAPI interface {
	Snapshot() thermo.Snapshot
	Settings() thermo.Settings
	SetRelayOverride(thermo.RelayOverride) error
}

type api struct {
	ctrl   controllerAPI
	screen *display.Buffer
}

type stateResponse struct {
	Time     time.Time              `json:"time"`
	State    map[string]interface{} `json:"state"`
	Settings thermo.Settings        `json:"settings"`
	Display  []string               `json:"display,omitempty"`
}

func newRouter(a *api, health *healthz.Instance) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/healthz", health.Healthz())
	r.Handle("/liveness", health.Liveness())
	r.HandleFunc("/api/state", a.state).Methods(http.MethodGet)
	r.HandleFunc("/api/relay_override/{mode}", a.setRelayOverride).Methods(http.MethodPut, http.MethodPost)
	return r
}

func (a *api) state(w http.ResponseWriter, _ *http.Request) {
	snap := a.ctrl.Snapshot()
	resp := stateResponse{
		Time:     snap.Time,
		State:    monitor.Fields(&snap),
		Settings: a.ctrl.Settings(),
	}
	if a.screen != nil {
		for _, line := range a.screen.Lines() {
			resp.Display = append(resp.Display, display.Printable(line))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) setRelayOverride(w http.ResponseWriter, r *http.Request) {
	mode, err := thermo.ParseRelayOverride(mux.Vars(r)["mode"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := a.ctrl.SetRelayOverride(mode); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	log.Infof("Relay override set to %s over HTTP", mode)
	writeJSON(w, http.StatusAccepted, map[string]string{"relay_override": mode.Keyword()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
