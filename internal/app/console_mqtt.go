package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/diffpressure/internal/config"
	"github.com/relabs-tech/diffpressure/internal/pressure"
)

func formatValue(tag string, v pressure.Value) string {
	return fmt.Sprintf("[%s] %s=%.2f %s at %s", tag, v.Name, v.Value, v.Unit, v.Time.Format("15:04:05"))
}

func formatReading(r pressure.Reading) string {
	return fmt.Sprintf("[READ] T=%6.2f°C  dP=%8.2fPa  range=%d  at %s",
		r.Temperature, r.Pressure, r.Range, r.Time.Format("15:04:05"))
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	valueHandler := func(tag string) mqtt.MessageHandler {
		return func(_ mqtt.Client, msg mqtt.Message) {
			var v pressure.Value
			if err := json.Unmarshal(msg.Payload(), &v); err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Println(formatValue(tag, v))
		}
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{cfg.TopicTemperature, valueHandler("TEMP")},
		{cfg.TopicPressure, valueHandler("PRES")},
		{cfg.TopicReading, func(_ mqtt.Client, msg mqtt.Message) {
			var r pressure.Reading
			if err := json.Unmarshal(msg.Payload(), &r); err != nil {
				log.Printf("console: reading unmarshal error: %v", err)
				return
			}
			fmt.Println(formatReading(r))
		}},
	}
	for _, s := range subs {
		token := client.Subscribe(s.topic, 0, s.handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", s.topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
