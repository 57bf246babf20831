// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/relabs-tech/diffpressure/internal/app"
	"github.com/relabs-tech/diffpressure/internal/config"
	"github.com/relabs-tech/diffpressure/internal/pressure"
	"github.com/relabs-tech/diffpressure/internal/sensors"
	"github.com/relabs-tech/diffpressure/internal/sink"
)

func main() {
	configPath := flag.String("config", "./pressure_config.txt", "path to configuration file")
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	log.Println("starting D6F-PH register debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	dev, bus, err := sensors.NewPressureSensor(cfg,
		&sink.Print{W: os.Stdout, Label: "TEMP", Unit: pressure.UnitCelsius},
		&sink.Print{W: os.Stdout, Label: "PRES", Unit: pressure.UnitPascal},
	)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer bus.Close()

	if err := dev.Initialize(); err != nil {
		log.Fatalf("D6F-PH initialize: %v", err)
	}
	sensors.LogConfig(dev, cfg)

	http.Handle("/ws", app.NewRegisterDebug(dev))
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	log.Printf("Register debug tool listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
