package ina228

// Register map (8-bit register pointers), INA228 datasheet §7.6.
const (
	regConfig    byte = 0x00
	regADCConfig byte = 0x01
	regShuntCal  byte = 0x02
	regVShunt    byte = 0x04
	regVBus      byte = 0x05
	regDieTemp   byte = 0x06
	regCurrent   byte = 0x07
	regPower     byte = 0x08
	regEnergy    byte = 0x09
	regCharge    byte = 0x0A
	regDiagAlert byte = 0x0B
	regMfgUID    byte = 0x3E
	regDeviceID  byte = 0x3F
)

// 7-bit addresses as strapped on the sense board.
const (
	AddressSolar   uint16 = 0x40
	AddressLoad    uint16 = 0x41
	AddressBattery uint16 = 0x44

	AddressDefault = AddressSolar
)

const (
	// CONFIG.RST self-clearing reset bit.
	configReset uint16 = 0x8000

	// ADC_CONFIG: continuous shunt+bus+temperature, 1052 µs conversions,
	// no averaging.
	adcConfigContinuous uint16 = 0xF000 | (5 << 9) | (5 << 6) | (5 << 3)

	// DEVICE_ID reads back as one of these (both revisions exist in the
	// field).
	deviceIDRevA uint16 = 0x2280
	deviceIDRevB uint16 = 0x2281
)

// RegisterKind is the semantic category of a telemetry register. Each kind
// carries its own fixed bit-layout decode rule; the per-kind distinction is
// load-bearing: shifting the no-shift kinds scales readings by 16.
type RegisterKind uint8

const (
	KindBusVoltage RegisterKind = iota
	KindCurrent
	KindPower
	KindEnergy
	KindCharge

	kindCount
)

func (k RegisterKind) String() string {
	switch k {
	case KindBusVoltage:
		return "bus_voltage"
	case KindCurrent:
		return "current"
	case KindPower:
		return "power"
	case KindEnergy:
		return "energy"
	case KindCharge:
		return "charge"
	}
	return "invalid"
}

// decodeRule is one row of the declarative decode policy: sign handling,
// post-extension right shift, and the calibration-dependent scale that
// turns shifted counts into engineering units.
type decodeRule struct {
	reg    byte
	signed bool
	shift  uint8
	scale  func(Calibration) float64
}

// Fixed decode policy. VBUS and CURRENT are 20-bit fields left-justified in
// 24 bits (hence the 4-bit shift); POWER, ENERGY and CHARGE are full-width
// accumulator views and take no shift.
var decodeRules = [kindCount]decodeRule{
	KindBusVoltage: {reg: regVBus, signed: false, shift: 4,
		scale: func(Calibration) float64 { return 195.3125e-6 }}, // volts
	KindCurrent: {reg: regCurrent, signed: true, shift: 4,
		scale: func(c Calibration) float64 { return c.CurrentLSB * 1000 }}, // mA
	KindPower: {reg: regPower, signed: false, shift: 0,
		scale: func(c Calibration) float64 { return c.PowerLSB * 1000 }}, // mW
	KindEnergy: {reg: regEnergy, signed: false, shift: 0,
		scale: func(c Calibration) float64 { return 16 * c.PowerLSB }}, // joules
	KindCharge: {reg: regCharge, signed: true, shift: 0,
		scale: func(c Calibration) float64 { return c.CurrentLSB }}, // coulombs
}
