//go:build !rp2

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"tinygo.org/x/drivers"

	"powermon-go/services/config"
	"powermon-go/services/storage"
	"powermon-go/types"
)

var (
	configPath = flag.String("config", "", "YAML config file; built-in defaults when empty")
	outDir     = flag.String("out", "powertest-logs", "directory for CSV output")
)

func loadConfigBytes() ([]byte, error) {
	flag.Parse()
	if *configPath == "" {
		return nil, nil
	}
	return os.ReadFile(*configPath)
}

// Host builds talk to a simulated sensor bus.
func openI2C(clock types.Clock, cfg config.Config) (drivers.I2C, error) {
	return newSimI2C(clock, cfg)
}

func newBlockStorage() storage.BlockStorage {
	return storage.NewFileStore(*outDir)
}

func consoleInput() io.Reader { return os.Stdin }

func consolePrint(s string)   { fmt.Print(s) }
func consolePrintln(s string) { fmt.Println(s) }

func fatal(s string) {
	fmt.Fprintln(os.Stderr, s)
	os.Exit(1)
}
