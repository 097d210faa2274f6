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

package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

type Client struct {
	URI           *url.URL
	ClientID      string
	Prefix        string
	connection    mqtt.Client
	subscriptions map[string]subscriptionInfo
	subMutex      sync.RWMutex
}

type subscriptionInfo struct {
	qos      byte
	callback MessageHandler
}

type Message mqtt.Message

type MessageHandler func(client *Client, message Message)

// NewClient connects to the broker and announces the device as online.
// The broker marks it offline through the last will if the link drops.
func NewClient(uri *url.URL, clientID string, prefix string) (*Client, error) {
	client := Client{
		URI:           uri,
		ClientID:      clientID,
		Prefix:        prefix,
		subscriptions: make(map[string]subscriptionInfo),
	}
	opts, err := createClientOptions(&client)
	if err != nil {
		return nil, err
	}
	opts.SetWill(client.StatusTopic(), statusOffline, 1, true)

	client.connection = mqtt.NewClient(opts)
	token := client.connection.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", uri.Host, err)
	}
	return &client, nil
}

// Topic joins a relative topic onto the client prefix.
func (client *Client) Topic(rel string) string {
	return fmt.Sprintf("%s/%s", client.Prefix, rel)
}

// StatusTopic carries the availability of the device.
func (client *Client) StatusTopic() string {
	return client.Topic("status")
}

// PublishFields publishes every value under <prefix>/<group>/<key>.
func (client *Client) PublishFields(group string, values map[string]interface{}) error {
	for key, val := range values {
		if err := client.Publish(client.Topic(group+"/"+key), val); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends a retained message. Strings and byte slices are sent as is,
// anything else as JSON.
func (client *Client) Publish(topic string, val interface{}) error {
	payload, err := encodePayload(val)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", topic, err)
	}

	token := client.connection.Publish(topic, 0, true, payload)
	go func() {
		<-token.Done()
		if token.Error() != nil {
			log.Errorf("mqtt publish to %s failed: %v", topic, token.Error())
		}
	}()
	return nil
}

func encodePayload(val interface{}) ([]byte, error) {
	switch p := val.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	}
	return json.Marshal(val)
}

// Subscribe listens on a topic relative to the prefix. Subscriptions are
// restored after a reconnect.
func (client *Client) Subscribe(topic string, qos byte, callback MessageHandler) error {
	fullTopic := client.Topic(topic)

	client.subMutex.Lock()
	client.subscriptions[fullTopic] = subscriptionInfo{
		qos:      qos,
		callback: callback,
	}
	client.subMutex.Unlock()

	token := client.connection.Subscribe(fullTopic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		callback(client, msg)
	})
	token.Wait()
	return token.Error()
}

// Close marks the device offline and disconnects.
func (client *Client) Close() {
	token := client.connection.Publish(client.StatusTopic(), 1, true, statusOffline)
	token.WaitTimeout(time.Second)
	client.connection.Disconnect(250)
}

func (client *Client) onConnect(conn mqtt.Client) {
	log.Info("mqtt connected")

	conn.Publish(client.StatusTopic(), 1, true, statusOnline)

	client.subMutex.RLock()
	defer client.subMutex.RUnlock()

	for fullTopic, sub := range client.subscriptions {
		subInfo := sub
		token := conn.Subscribe(fullTopic, subInfo.qos, func(_ mqtt.Client, msg mqtt.Message) {
			subInfo.callback(client, msg)
		})
		token.Wait()
		if err := token.Error(); err != nil {
			log.Errorf("failed to resubscribe to %s: %v", fullTopic, err)
		} else {
			log.Infof("resubscribed to %s", fullTopic)
		}
	}
}

// brokerURL maps mqtt:// and mqtts:// onto the paho tcp:// and ssl://
// schemes, filling in the default port.
func brokerURL(uri *url.URL) string {
	secure := uri.Scheme == "mqtts"
	port := uri.Port()
	if port == "" {
		port = "1883"
		if secure {
			port = "8883"
		}
	}
	scheme := "tcp"
	if secure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, uri.Hostname(), port)
}

// tlsConfig reads tls_cert, tls_key, tls_cacert and insecure from the query.
func tlsConfig(uri *url.URL) (*tls.Config, error) {
	query := uri.Query()
	cfg := &tls.Config{
		InsecureSkipVerify: query.Get("insecure") == "true",
	}

	if certFile, keyFile := query.Get("tls_cert"), query.Get("tls_key"); certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load tls cert and key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if caFile := query.Get("tls_cacert"); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(pem)
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func createClientOptions(client *Client) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(client.URI))

	if client.URI.Scheme == "mqtts" {
		cfg, err := tlsConfig(client.URI)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(cfg)
	}

	opts.SetUsername(client.URI.User.Username())
	password, _ := client.URI.User.Password()
	opts.SetPassword(password)
	opts.SetClientID(client.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("mqtt connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Warn("mqtt reconnecting")
	})
	opts.SetOnConnectHandler(client.onConnect)

	return opts, nil
}
