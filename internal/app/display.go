package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/diffpressure/internal/config"
	"github.com/relabs-tech/diffpressure/internal/pressure"
)

const (
	displayWidth  = 128
	displayHeight = 64

	// ssd1306Addr is the address ssd1306.NewI2C always talks to.
	ssd1306Addr uint16 = 0x3C
)

// addrBus sends transactions meant for one address to another, so an
// SSD1306 strapped to 0x3D is reachable through ssd1306.NewI2C.
type addrBus struct {
	i2c.Bus
	from, to uint16
}

func newDisplayBus(bus i2c.Bus, addr uint16) i2c.Bus {
	if addr == ssd1306Addr {
		return bus
	}
	return &addrBus{Bus: bus, from: ssd1306Addr, to: addr}
}

func (b *addrBus) Tx(addr uint16, w, r []byte) error {
	if addr == b.from {
		addr = b.to
	}
	return b.Bus.Tx(addr, w, r)
}

func (b *addrBus) String() string {
	return fmt.Sprintf("%s(0x%02X->0x%02X)", b.Bus, b.from, b.to)
}

// displayData holds the latest reading for the display loop.
type displayData struct {
	mu      sync.RWMutex
	reading pressure.Reading
	have    bool
}

func (d *displayData) set(r pressure.Reading) {
	d.mu.Lock()
	d.reading = r
	d.have = true
	d.mu.Unlock()
}

func (d *displayData) get() (pressure.Reading, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reading, d.have
}

func RunDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.D6FPHI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(newDisplayBus(bus, cfg.DisplayI2CAddr), &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicReading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r pressure.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: reading unmarshal error: %v", err)
			return
		}
		data.set(r)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicReading)

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		r, ok := data.get()
		if err := dev.Draw(dev.Bounds(), renderReading(r, ok), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// renderReading draws the pressure with temperature and range underneath.
func renderReading(r pressure.Reading, have bool) *image1bit.VerticalLSB {
	img, d := newFrame()
	if !have {
		drawLine(d, 0, 26, "Diff. pressure")
		drawLine(d, 0, 39, "Waiting...")
		return img
	}
	drawLine(d, 0, 13, "dP:")
	drawLine(d, 0, 26, fmt.Sprintf("%8.1f Pa", r.Pressure))
	drawLine(d, 0, 43, fmt.Sprintf("T: %5.1f C", r.Temperature))
	drawLine(d, 0, 56, fmt.Sprintf("Range %d", r.Range))
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newFrame()
	drawLine(d, 22, 26, "D6F-PH")
	drawLine(d, 5, 43, "Diff. pressure")
	return img
}
