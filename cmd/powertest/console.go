package main

import (
	"bufio"
	"context"
	"strconv"

	"github.com/google/shlex"

	"powermon-go/bus"
	"powermon-go/services/heartbeat"
	"powermon-go/services/powertest"
	"powermon-go/services/storage"
)

const helpText = `commands:
  run      walk the full test sequence and print per-state statistics
  status   show storage lifecycle state, strategy and buffer depth
  help     this text
  quit     exit`

// runConsole is the operator loop. Commands are shlex-tokenized so quoted
// arguments survive if subcommands grow them later.
func runConsole(h *powertest.Harness, w *storage.Writer, b *bus.Bus) {
	consolePrintln("powertest ready")
	consolePrintln(helpText)

	sc := bufio.NewScanner(consoleInput())
	for {
		consolePrint("> ")
		if !sc.Scan() {
			return
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			consolePrintln("parse: " + err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "run":
			stats, err := h.Run(context.Background())
			if err != nil {
				consolePrintln("run: " + err.Error())
			}
			printStats(stats)
		case "status":
			printStatus(w, b)
		case "help":
			consolePrintln(helpText)
		case "quit", "exit":
			return
		default:
			consolePrintln("unknown command " + strconv.Quote(args[0]) + "; try help")
		}
	}
}

func printStats(stats []powertest.Stats) {
	for _, s := range stats {
		consolePrintln(s.State +
			": entries=" + strconv.Itoa(s.Entries) +
			" valid=" + strconv.Itoa(s.ValidSamples) +
			" invalid=" + strconv.Itoa(s.InvalidSamples) +
			" power_mw min=" + fmtMW(s.MinPowerMW) +
			" avg=" + fmtMW(s.AvgPowerMW()) +
			" max=" + fmtMW(s.MaxPowerMW))
	}
}

func printStatus(w *storage.Writer, b *bus.Bus) {
	consolePrintln("storage: " + w.State().String() +
		" strategy=" + w.Strategy().String() +
		" buffered=" + strconv.Itoa(w.Buffered()))
	if ev, ok := b.Retained(powertest.TopicState); ok {
		consolePrintln("harness: " + ev.Payload.(string))
	} else {
		consolePrintln("harness: not started")
	}
	if ev, ok := b.Retained(heartbeat.Topic); ok {
		consolePrintln("uptime: " + strconv.FormatInt(ev.Payload.(int64), 10) + "s")
	}
}

func formatEvent(ev bus.Event) string {
	s := "[" + ev.Topic + "]"
	switch p := ev.Payload.(type) {
	case string:
		s += " " + p
	case int:
		s += " " + strconv.Itoa(p)
	case powertest.Stats:
		s += " " + p.State
	}
	if ev.Err != "" {
		s += " err=" + ev.Err
	}
	return s
}

func fmtMW(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
