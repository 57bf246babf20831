package d6fph

import (
	"errors"
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

type recordSink struct {
	values []float64
	err    error
}

func (s *recordSink) Publish(v float64) error {
	if s.err != nil {
		return s.err
	}
	s.values = append(s.values, v)
	return nil
}

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func initOps() []i2ctest.IO {
	return []i2ctest.IO{{Addr: DefaultAddress, W: []byte{0x0B, 0x00}}}
}

// pollOps is the bus traffic of one successful Poll.
func pollOps(temp, press uint16) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: DefaultAddress, W: []byte{0x00, 0xD0, 0x40, 0x18, 0x06}},
		{Addr: DefaultAddress, W: []byte{0x00, 0xD0, 0x61, 0x2C}},
		{Addr: DefaultAddress, W: []byte{0x07}, R: []byte{byte(temp >> 8), byte(temp)}},
		{Addr: DefaultAddress, W: []byte{0x00, 0xD0, 0x51, 0x2C}},
		{Addr: DefaultAddress, W: []byte{0x07}, R: []byte{byte(press >> 8), byte(press)}},
	}
}

func newTestDev(t *testing.T, bus *i2ctest.Playback, mode RangeMode) *Dev {
	t.Helper()
	d, err := New(bus, &Opts{Range: mode})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.sleep = func(time.Duration) {}
	d.now = func() time.Time { return testTime }
	return d
}

func TestNew(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	d, err := New(bus, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Addr() != 0x6C {
		t.Errorf("got addr 0x%X want 0x6C", d.Addr())
	}
	if d.RangeMode() != 0 {
		t.Errorf("got range %v want unset", d.RangeMode())
	}
	if d.measureDelay != 33*time.Millisecond {
		t.Errorf("got delay %v want 33ms", d.measureDelay)
	}

	if _, err := New(bus, &Opts{Addr: 0x80}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("addr 0x80: got %v want ErrConfiguration", err)
	}
	if _, err := New(bus, &Opts{Range: 500}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("range 500: got %v want ErrConfiguration", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("New must not touch the bus: %v", err)
	}
}

func TestParseRangeMode(t *testing.T) {
	for _, code := range []int{100, 250, 1000} {
		m, err := ParseRangeMode(code)
		if err != nil {
			t.Errorf("%d: %v", code, err)
		}
		if int(m) != code {
			t.Errorf("got %d want %d", m, code)
		}
	}
	for _, code := range []int{0, -100, 50, 500, 65536 + 100} {
		if _, err := ParseRangeMode(code); err == nil {
			t.Errorf("%d: expected error", code)
		}
	}
}

func TestRangeBounds(t *testing.T) {
	tests := []struct {
		mode     RangeMode
		min, max float64
		model    string
	}{
		{RangeMode100, -50, 50, "D6F-PH0505AD3"},
		{RangeMode250, 0, 250, "D6F-PH0025AD1"},
		{RangeMode1000, -500, 500, "D6F-PH5050AD3"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			if got := tt.mode.Pressure(RawMin); math.Abs(got-tt.min) > 1e-9 {
				t.Errorf("Pressure(RawMin) = %v want %v", got, tt.min)
			}
			if got := tt.mode.Pressure(RawMax); math.Abs(got-tt.max) > 1e-9 {
				t.Errorf("Pressure(RawMax) = %v want %v", got, tt.max)
			}
			if tt.mode.Min() != tt.min || math.Abs(tt.mode.Max()-tt.max) > 1e-9 {
				t.Errorf("Min/Max = %v/%v want %v/%v", tt.mode.Min(), tt.mode.Max(), tt.min, tt.max)
			}
			if tt.mode.Model() != tt.model {
				t.Errorf("Model = %q want %q", tt.mode.Model(), tt.model)
			}
		})
	}
}

func TestPressureMonotonicAndBijective(t *testing.T) {
	for _, mode := range []RangeMode{RangeMode100, RangeMode250, RangeMode1000} {
		prev := math.Inf(-1)
		for raw := uint32(RawMin); raw <= uint32(RawMax); raw++ {
			p := mode.Pressure(uint16(raw))
			if p <= prev {
				t.Fatalf("%s: not increasing at raw %d (%v <= %v)", mode, raw, p, prev)
			}
			if back := mode.Raw(p); back != uint16(raw) {
				t.Fatalf("%s: Raw(Pressure(%d)) = %d", mode, raw, back)
			}
			prev = p
		}
	}
}

func TestPressureRoundTrip(t *testing.T) {
	tests := []struct {
		mode RangeMode
		pa   []float64
	}{
		{RangeMode100, []float64{-50, -12.3, 0, 0.2, 33.33, 50}},
		{RangeMode250, []float64{0, 1.7, 125, 249.9, 250}},
		{RangeMode1000, []float64{-500, -250.25, 0, 7.77, 499.5, 500}},
	}
	for _, tt := range tests {
		for _, pa := range tt.pa {
			got := tt.mode.Pressure(tt.mode.Raw(pa))
			if math.Abs(got-pa) > 0.5 {
				t.Errorf("%s: %v Pa decoded as %v", tt.mode, pa, got)
			}
		}
	}
}

func TestRawClamps(t *testing.T) {
	if got := RangeMode100.Raw(-1000); got != RawMin {
		t.Errorf("got %d want %d", got, RawMin)
	}
	if got := RangeMode100.Raw(1000); got != RawMax {
		t.Errorf("got %d want %d", got, RawMax)
	}
}

func TestCelsius(t *testing.T) {
	if got := Celsius(10214); got != 0 {
		t.Errorf("Celsius(10214) = %v want 0", got)
	}
	for _, c := range []float64{-20, 0, 21.5, 60} {
		if got := Celsius(RawCelsius(c)); math.Abs(got-c) > 0.05 {
			t.Errorf("round trip %v -> %v", c, got)
		}
	}
}

func TestConvert(t *testing.T) {
	d := newTestDev(t, &i2ctest.Playback{DontPanic: true}, RangeMode100)

	r, err := d.Convert(Raw{Temperature: 10214, Pressure: 31024, Time: testTime})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if math.Abs(r.Pressure) > 1e-9 {
		t.Errorf("mid-scale pressure = %v want 0", r.Pressure)
	}
	if r.Temperature != 0 || r.Range != 100 || !r.Time.Equal(testTime) {
		t.Errorf("unexpected reading %+v", r)
	}

	for _, raw := range []uint16{0, RawMin - 1, RawMax + 1, 0xFFFF} {
		if _, err := d.Convert(Raw{Pressure: raw}); !errors.Is(err, ErrRange) {
			t.Errorf("raw %d: got %v want ErrRange", raw, err)
		}
	}

	unset := newTestDev(t, &i2ctest.Playback{DontPanic: true}, 0)
	if _, err := unset.Convert(Raw{Pressure: 31024}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v want ErrConfiguration", err)
	}
}

func TestInitialize(t *testing.T) {
	t.Run("no range mode", func(t *testing.T) {
		d := newTestDev(t, &i2ctest.Playback{DontPanic: true}, 0)
		_ = d.SetPressureSink(&recordSink{})
		if err := d.Initialize(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("got %v want ErrConfiguration", err)
		}
	})

	t.Run("no sinks", func(t *testing.T) {
		d := newTestDev(t, &i2ctest.Playback{DontPanic: true}, RangeMode250)
		if err := d.Initialize(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("got %v want ErrConfiguration", err)
		}
	})

	t.Run("no ack", func(t *testing.T) {
		d := newTestDev(t, &i2ctest.Playback{DontPanic: true}, RangeMode250)
		_ = d.SetPressureSink(&recordSink{})
		err := d.Initialize()
		if !errors.Is(err, ErrCommunication) {
			t.Errorf("got %v want ErrCommunication", err)
		}
		if d.Initialized() {
			t.Error("device marked initialized after bus failure")
		}
	})

	t.Run("ok", func(t *testing.T) {
		bus := &i2ctest.Playback{Ops: initOps(), DontPanic: true}
		d := newTestDev(t, bus, RangeMode250)
		_ = d.SetTemperatureSink(&recordSink{})
		if err := d.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		if err := bus.Close(); err != nil {
			t.Error(err)
		}
	})
}

func TestSettersAfterInitialize(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initOps(), DontPanic: true}
	d := newTestDev(t, bus, RangeMode250)
	_ = d.SetPressureSink(&recordSink{})
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := d.SetRangeMode(RangeMode100); !errors.Is(err, ErrConfiguration) {
		t.Errorf("SetRangeMode: got %v want ErrConfiguration", err)
	}
	if d.RangeMode() != RangeMode250 {
		t.Errorf("range mode changed to %v", d.RangeMode())
	}
	if err := d.SetTemperatureSink(&recordSink{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("SetTemperatureSink: got %v want ErrConfiguration", err)
	}
	if err := d.SetPressureSink(nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("SetPressureSink: got %v want ErrConfiguration", err)
	}
}

func TestSetRangeModeInvalid(t *testing.T) {
	d := newTestDev(t, &i2ctest.Playback{DontPanic: true}, 0)
	if err := d.SetRangeMode(RangeMode(42)); !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v want ErrConfiguration", err)
	}
	if err := d.SetRangeMode(RangeMode1000); err != nil {
		t.Errorf("SetRangeMode: %v", err)
	}
}

func TestPollWithoutInitialize(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	d := newTestDev(t, bus, RangeMode250)
	press := &recordSink{}
	_ = d.SetPressureSink(press)

	if _, err := d.Poll(); !errors.Is(err, ErrCommunication) {
		t.Errorf("got %v want ErrCommunication", err)
	}
	if len(press.values) != 0 {
		t.Errorf("published %v", press.values)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("bus touched: %v", err)
	}
}

func TestPoll(t *testing.T) {
	tempRaw := RawCelsius(25)
	bus := &i2ctest.Playback{Ops: append(initOps(), pollOps(tempRaw, 31024)...), DontPanic: true}
	d := newTestDev(t, bus, RangeMode250)
	temp, press := &recordSink{}, &recordSink{}
	_ = d.SetTemperatureSink(temp)
	_ = d.SetPressureSink(press)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var slept time.Duration
	d.sleep = func(dt time.Duration) { slept += dt }

	r, err := d.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if slept != DefaultMeasureDelay {
		t.Errorf("waited %v want %v", slept, DefaultMeasureDelay)
	}
	if math.Abs(r.Pressure-125) > 1e-9 {
		t.Errorf("pressure = %v want 125", r.Pressure)
	}
	if math.Abs(r.Temperature-25) > 0.05 {
		t.Errorf("temperature = %v want 25", r.Temperature)
	}
	if len(temp.values) != 1 || temp.values[0] != r.Temperature {
		t.Errorf("temperature sink got %v", temp.values)
	}
	if len(press.values) != 1 || press.values[0] != r.Pressure {
		t.Errorf("pressure sink got %v", press.values)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestPollOptionalSink(t *testing.T) {
	bus := &i2ctest.Playback{Ops: append(initOps(), pollOps(10214, 1024)...), DontPanic: true}
	d := newTestDev(t, bus, RangeMode1000)
	press := &recordSink{}
	_ = d.SetPressureSink(press)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	r, err := d.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if r.Pressure != -500 {
		t.Errorf("pressure = %v want -500", r.Pressure)
	}
	if len(press.values) != 1 {
		t.Errorf("pressure sink got %v", press.values)
	}
}

func TestPollShortRead(t *testing.T) {
	ops := append(initOps(), pollOps(10214, 31024)...)
	ops[len(ops)-1].R = ops[len(ops)-1].R[:1]
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d := newTestDev(t, bus, RangeMode100)
	temp, press := &recordSink{}, &recordSink{}
	_ = d.SetTemperatureSink(temp)
	_ = d.SetPressureSink(press)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := d.Poll(); !errors.Is(err, ErrCommunication) {
		t.Fatalf("got %v want ErrCommunication", err)
	}
	if len(temp.values) != 0 || len(press.values) != 0 {
		t.Errorf("partial reading published: temp=%v press=%v", temp.values, press.values)
	}
}

func TestPollBusFault(t *testing.T) {
	ops := append(initOps(), pollOps(10214, 31024)[:2]...)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d := newTestDev(t, bus, RangeMode100)
	press := &recordSink{}
	_ = d.SetPressureSink(press)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := d.Poll(); !errors.Is(err, ErrCommunication) {
		t.Fatalf("got %v want ErrCommunication", err)
	}
	if len(press.values) != 0 {
		t.Errorf("published %v", press.values)
	}
}

func TestPollRangeError(t *testing.T) {
	bus := &i2ctest.Playback{Ops: append(initOps(), pollOps(10214, 200)...), DontPanic: true}
	d := newTestDev(t, bus, RangeMode250)
	temp, press := &recordSink{}, &recordSink{}
	_ = d.SetTemperatureSink(temp)
	_ = d.SetPressureSink(press)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := d.Poll(); !errors.Is(err, ErrRange) {
		t.Fatalf("got %v want ErrRange", err)
	}
	if len(temp.values) != 0 || len(press.values) != 0 {
		t.Errorf("published after range error: temp=%v press=%v", temp.values, press.values)
	}
}

func TestPollSinkError(t *testing.T) {
	bus := &i2ctest.Playback{Ops: append(initOps(), pollOps(10214, 31024)...), DontPanic: true}
	d := newTestDev(t, bus, RangeMode100)
	boom := errors.New("broker down")
	temp, press := &recordSink{err: boom}, &recordSink{}
	_ = d.SetTemperatureSink(temp)
	_ = d.SetPressureSink(press)
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	r, err := d.Poll()
	if !errors.Is(err, boom) {
		t.Fatalf("got %v want %v", err, boom)
	}
	if errors.Is(err, ErrCommunication) {
		t.Error("sink failure reported as communication error")
	}
	if r.Range != 100 {
		t.Errorf("reading not returned: %+v", r)
	}
	if len(press.values) != 1 {
		t.Errorf("pressure sink got %v", press.values)
	}
}

func TestFlags(t *testing.T) {
	ops := append(initOps(),
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x00, 0xD0, 0x46, 0x1C}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x07}, R: []byte{0x09}},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d := newTestDev(t, bus, RangeMode250)
	_ = d.SetPressureSink(&recordSink{})
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	f, err := d.Flags()
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	if !f.SupplyVoltage() || f.HeaterVoltage() || !f.OpenSensor() || f.OK() {
		t.Errorf("unexpected flags %08b", byte(f))
	}
	if got, want := f.String(), "supply_voltage,open_sensor"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if Flags(0).String() != "ok" {
		t.Errorf("got %q want ok", Flags(0).String())
	}
}

func TestString(t *testing.T) {
	d := newTestDev(t, &i2ctest.Playback{DontPanic: true}, RangeMode100)
	if got, want := d.String(), "D6F-PH0505AD3{addr=0x6C, range=±50Pa}"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
