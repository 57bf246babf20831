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

	log.Println("starting diffpressure OLED display (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
