//go:build rp2

package main

import (
	"context"
	"io"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"powermon-go/services/config"
	"powermon-go/services/storage"
	"powermon-go/types"
)

const consoleBaud = 115200

func loadConfigBytes() ([]byte, error) {
	// No filesystem to read from; built-in defaults match the sense board.
	return nil, nil
}

func openI2C(_ types.Clock, _ config.Config) (drivers.I2C, error) {
	sda := machine.I2C0_SDA_PIN
	scl := machine.I2C0_SCL_PIN
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	hw := machine.I2C0
	if err := hw.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: 400_000}); err != nil {
		return nil, err
	}
	return hw, nil
}

// TODO: back this with the SPI SD card driver so MCU runs exercise the real
// medium instead of the MCU flash filesystem.
func newBlockStorage() storage.BlockStorage {
	return storage.NewFileStore("/")
}

func consoleInput() io.Reader {
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{BaudRate: consoleBaud})
	return &uartReader{u: u}
}

// uartReader adapts uartx's context receive to io.Reader for the scanner.
type uartReader struct {
	u *uartx.UART
}

func (r *uartReader) Read(p []byte) (int, error) {
	return r.u.RecvSomeContext(context.Background(), p)
}

func consolePrint(s string)   { _, _ = uartx.UART0.Write([]byte(s)) }
func consolePrintln(s string) { consolePrint(s + "\r\n") }

func fatal(s string) {
	consolePrintln("fatal: " + s)
	for {
	}
}
