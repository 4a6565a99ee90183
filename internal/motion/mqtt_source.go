// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// rawIMU is the raw sample an inertial producer publishes per IMU.
type rawIMU struct {
	Source string `json:"source"` // "left" or "right"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// MQTTSource turns raw IMU messages from an MQTT topic into readings.
// Next hands out each received reading at most once.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	scale  float64

	mu     sync.Mutex
	latest Reading
	fresh  bool
}

// NewMQTTSource connects to broker and subscribes to topic. scale converts
// raw accelerometer counts to m/s².
func NewMQTTSource(broker, clientID, topic string, scale float64) (*MQTTSource, error) {
	s := &MQTTSource{topic: topic, scale: scale}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, token.Error())
	}
	log.Printf("motion: connected to MQTT broker at %s", broker)

	token := s.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handlePayload(msg.Payload()); err != nil {
			log.Printf("motion: %s unmarshal error: %v", topic, err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	log.Printf("motion: subscribed to MQTT topic %s", topic)

	return s, nil
}

func (s *MQTTSource) handlePayload(payload []byte) error {
	var raw rawIMU
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}

	s.mu.Lock()
	s.latest = Reading{
		X: float64(raw.Ax) * s.scale,
		Y: float64(raw.Ay) * s.scale,
		Z: float64(raw.Az) * s.scale,
	}
	s.fresh = true
	s.mu.Unlock()
	return nil
}

// Next returns the latest unread reading, or ErrNoReading.
func (s *MQTTSource) Next() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return Reading{}, ErrNoReading
	}
	s.fresh = false
	return s.latest, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
