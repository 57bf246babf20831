// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/diffpressure/internal/config"
	"github.com/relabs-tech/diffpressure/internal/pressure"
	"github.com/relabs-tech/diffpressure/internal/sensors"
	"github.com/relabs-tech/diffpressure/internal/sink"
)

// poller is one sensor polled by the loop.
type poller interface {
	Poll() (pressure.Reading, error)
}

// RunPressureProducer polls the D6F-PH on the configured interval and
// publishes each value to MQTT until SIGINT/SIGTERM.
func RunPressureProducer() error {
	log.Println("starting differential pressure producer")

	cfg := config.Get()

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	metrics := newPollMetrics(prometheus.DefaultRegisterer)

	// --- outputs: only the named ones exist ---
	var tempSink, pressSink sink.Sink
	if cfg.TemperatureEnabled() {
		tempSink = sink.Tee(
			sink.NewMQTT(client, cfg.TopicTemperature, cfg.D6FPHTemperatureName, pressure.UnitCelsius),
			sink.Gauge{G: metrics.temperature},
		)
	}
	if cfg.PressureEnabled() {
		pressSink = sink.Tee(
			sink.NewMQTT(client, cfg.TopicPressure, cfg.D6FPHPressureName, pressure.UnitPascal),
			sink.Gauge{G: metrics.pressure},
		)
	}

	// --- sensor ---
	dev, bus, err := sensors.NewPressureSensor(cfg, tempSink, pressSink)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := dev.Initialize(); err != nil {
		return fmt.Errorf("D6F-PH initialize: %w", err)
	}
	sensors.LogConfig(dev, cfg)

	if flags, err := dev.Flags(); err != nil {
		log.Printf("producer: WARNING: failed to read D6F-PH flags: %v", err)
	} else if !flags.OK() {
		log.Printf("producer: WARNING: D6F-PH flags: %s", flags)
	}

	go serveMetrics(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publishReading := func(r pressure.Reading) error {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal reading: %w", err)
		}
		if token := client.Publish(cfg.TopicReading, 0, true, payload); token.Wait() && token.Error() != nil {
			return fmt.Errorf("publish %s: %w", cfg.TopicReading, token.Error())
		}
		return nil
	}

	log.Printf("producer: polling every %s", cfg.D6FPHUpdateInterval)
	runPollLoop(ctx, dev, cfg.D6FPHUpdateInterval, metrics, publishReading)

	log.Println("producer: shutting down")
	return nil
}

// runPollLoop polls once immediately and then on every tick. A poll never
// overlaps the next one; failures are logged and the loop goes on.
func runPollLoop(ctx context.Context, p poller, interval time.Duration, m *pollMetrics, publish func(pressure.Reading) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pollOnce(p, m, publish)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pollOnce(p, m, publish)
		}
	}
}

func pollOnce(p poller, m *pollMetrics, publish func(pressure.Reading) error) {
	start := time.Now()
	r, err := p.Poll()
	m.observe(err, time.Since(start))
	if err != nil {
		log.Printf("producer: poll error: %v", err)
	}
	// Sink failures still return the reading; bus and range failures do not.
	if r.Time.IsZero() {
		return
	}
	if publish != nil {
		if err := publish(r); err != nil {
			log.Printf("producer: %v", err)
			return
		}
	}
	log.Printf("producer: T=%.1f°C dP=%.1fPa", r.Temperature, r.Pressure)
}
