// cmd/powertest runs the storage power-draw test: it samples every INA228
// channel once a second while walking the SD lifecycle states, logs CSV
// through the storage writer, and mirrors bus events to the console. On a
// host build the I2C bus is simulated; on rp2 it is machine.I2C0 and the
// console rides UART0.
package main

import (
	"context"
	"time"

	"powermon-go/bus"
	"powermon-go/drivers/ina228"
	"powermon-go/services/config"
	"powermon-go/services/heartbeat"
	"powermon-go/services/powertest"
	"powermon-go/services/sampler"
	"powermon-go/services/storage"
	"powermon-go/x/timex"
)

func main() {
	raw, err := loadConfigBytes()
	if err != nil {
		fatal("config: " + err.Error())
	}
	cfg, err := config.Load(raw)
	if err != nil {
		fatal("config: " + err.Error())
	}

	clock := timex.NewMonotonic()
	b := bus.New(32)
	watchEvents(b)

	i2c, err := openI2C(clock, cfg)
	if err != nil {
		fatal("i2c: " + err.Error())
	}

	names := make([]string, 0, len(cfg.Channels))
	channels := make([]sampler.Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		dev, err := ina228.New(i2c, ina228.Config{
			Address:     ch.Address,
			ShuntOhms:   ch.ShuntOhms,
			MaxCurrentA: ch.MaxCurrentA,
		})
		if err != nil {
			fatal(ch.Name + ": " + err.Error())
		}
		if err := dev.Init(); err != nil {
			// A dead channel still gets a column; its reads come back
			// invalid and zeroed.
			consolePrintln("warn: " + ch.Name + " init: " + err.Error())
		}
		names = append(names, ch.Name)
		channels = append(channels, sampler.Channel{Name: ch.Name, Reader: dev})
	}

	runID := uint32(timex.NowMs())
	sched := sampler.New(channels, cfg.Sampling.IntervalMs, runID, b)
	writer := storage.NewWriter(newBlockStorage(), storage.Options{
		FileName:      cfg.Storage.FileName,
		Channels:      names,
		BufferEntries: cfg.Storage.BufferEntries,
		BatchPeriodMs: cfg.Storage.BatchPeriodMs,
	}, b)
	harness := powertest.New(sched, writer, clock, powertest.Options{
		DwellMs: cfg.Harness.StateDwellMs,
	}, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	heartbeat.New(clock, b, 10*time.Second).Start(ctx)

	runConsole(harness, writer, b)
}

// watchEvents mirrors every known bus topic to the console.
func watchEvents(b *bus.Bus) {
	topics := []string{
		sampler.TopicReadError,
		storage.TopicState,
		storage.TopicFlush,
		storage.TopicWriteError,
		storage.TopicBufferFull,
		powertest.TopicState,
		powertest.TopicStateDone,
		powertest.TopicDone,
	}
	for _, topic := range topics {
		sub := b.Subscribe(topic)
		go func() {
			for ev := range sub.Events() {
				consolePrintln(formatEvent(ev))
			}
		}()
	}
}
