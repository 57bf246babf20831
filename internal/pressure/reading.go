package pressure

import "time"

// Reading is one poll cycle of the differential pressure sensor.
type Reading struct {
	Temperature float64   `json:"temp_c"`      // °C
	Pressure    float64   `json:"pressure_pa"` // Pa, differential
	Range       uint16    `json:"range_mode"`  // 100, 250 or 1000
	Time        time.Time `json:"time"`
}

// Value is a single named output as published to one sink.
type Value struct {
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit"` // "°C" or "Pa"
	Time  time.Time `json:"time"`
}

const (
	UnitCelsius = "°C"
	UnitPascal  = "Pa"
)
