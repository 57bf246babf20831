// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/diffpressure/internal/app"
	"github.com/relabs-tech/diffpressure/internal/config"
)

func main() {
	configPath := flag.String("config", "./pressure_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting diffpressure producer (D6F-PH → MQTT)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunPressureProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
