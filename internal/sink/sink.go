// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink holds the downstream consumers a sensor publishes to.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/diffpressure/internal/d6fph"
	"github.com/relabs-tech/diffpressure/internal/pressure"
)

// Sink is what the driver publishes to.
type Sink = d6fph.Sink

// publishTimeout bounds how long one MQTT publish may block a poll.
const publishTimeout = 5 * time.Second

// MQTT publishes each value as a retained JSON pressure.Value.
type MQTT struct {
	Client mqtt.Client
	Topic  string
	Name   string
	Unit   string

	now func() time.Time
}

// NewMQTT returns a sink publishing to topic.
func NewMQTT(client mqtt.Client, topic, name, unit string) *MQTT {
	return &MQTT{Client: client, Topic: topic, Name: name, Unit: unit, now: time.Now}
}

// Publish sends v as a retained message and waits at most publishTimeout.
func (m *MQTT) Publish(v float64) error {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	payload, err := json.Marshal(pressure.Value{Name: m.Name, Value: v, Unit: m.Unit, Time: now().UTC()})
	if err != nil {
		return fmt.Errorf("mqtt sink %s: marshal: %w", m.Topic, err)
	}
	token := m.Client.Publish(m.Topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt sink %s: publish timed out", m.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt sink %s: %w", m.Topic, err)
	}
	return nil
}

// Gauge sets a Prometheus gauge to the last published value.
type Gauge struct {
	G prometheus.Gauge
}

// Publish sets the gauge to v.
func (g Gauge) Publish(v float64) error {
	g.G.Set(v)
	return nil
}

// Print writes one formatted line per value.
type Print struct {
	mu     sync.Mutex
	W      io.Writer
	Label  string
	Format string // fmt verb for the value, default "%.1f"
	Unit   string
}

// Publish writes "[Label] value Unit" to W.
func (p *Print) Publish(v float64) error {
	format := p.Format
	if format == "" {
		format = "%.1f"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.W, "[%s] "+format+" %s\n", p.Label, v, p.Unit)
	return err
}

// Tee fans one value out to several sinks. Every sink is called; errors are
// joined.
func Tee(sinks ...Sink) Sink {
	var out tee
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type tee []Sink

func (t tee) Publish(v float64) error {
	var errs []error
	for _, s := range t {
		if err := s.Publish(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
