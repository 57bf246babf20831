// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/diffpressure/internal/app"
	"github.com/relabs-tech/diffpressure/internal/d6fph"
)

func main() {
	mode := flag.Int("range", 250, "range mode: 100, 250 or 1000")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	log.Println("starting diffpressure (mock console)")

	rm, err := d6fph.ParseRangeMode(*mode)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMockConsole(ctx, os.Stdout, rm, *interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
