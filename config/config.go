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

package config

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	LogLevel    string
	Bind        string
	MQTTURL     string
	HADiscovery bool
	ProfilePath string
	EEPROMPath  string
	SerialPort  string
	DeviceID    string
}

// Load parses command-line flags and environment variables
func Load() *Config {
	cfg := register(flag.CommandLine)
	flag.Parse()
	return cfg
}

func register(fs *flag.FlagSet) *Config {
	cfg := &Config{}

	fs.StringVar(&cfg.LogLevel, "log-level", lookupEnvOrString("THERMO_MATE_LOG_LEVEL", "INFO"), "logging level")
	fs.StringVar(&cfg.Bind, "bind", lookupEnvOrString("THERMO_MATE_BIND", "0.0.0.0:2112"), "address to bind for the state API, healthz and prometheus metrics endpoints, or \"false\" to disable")
	fs.StringVar(&cfg.MQTTURL, "mqtt", lookupEnvOrString("THERMO_MATE_MQTT", "mqtt://localhost:1883"), "MQTT URI, in the format mqtt[s]://[<user>:<password>]@<host>:<port>[/<prefix>], or empty to disable")
	fs.BoolVar(&cfg.HADiscovery, "homeassistant", lookupEnvOrBool("THERMO_MATE_HOMEASSISTANT", true), "enable Home Assistant autodiscovery (default: true)")
	fs.StringVar(&cfg.ProfilePath, "profile", lookupEnvOrString("THERMO_MATE_PROFILE", "/etc/thermo-mate/profile.yaml"), "hardware profile (YAML); built-in simulator defaults are used if it does not exist")
	fs.StringVar(&cfg.EEPROMPath, "eeprom", lookupEnvOrString("THERMO_MATE_EEPROM", "/var/lib/thermo-mate/settings.db"), "settings storage; a .db file is a bolt database, anything else a raw image")
	fs.StringVar(&cfg.SerialPort, "serial", lookupEnvOrString("THERMO_MATE_SERIAL", ""), "serial port for DRQ state lines, empty to disable")
	fs.StringVar(&cfg.DeviceID, "id", lookupEnvOrString("THERMO_MATE_ID", "thermo-mate"), "device id used for MQTT topics and discovery")

	return cfg
}

// SetupLogging configures the logging level
func (cfg *Config) SetupLogging() {
	log.SetFormatter(&log.TextFormatter{})
	ll, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		ll = log.InfoLevel
	}
	log.SetLevel(ll)
}

func lookupEnvOrString(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func lookupEnvOrBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		return false
	}
	return defaultVal
}
