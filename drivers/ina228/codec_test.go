package ina228

import (
	"math"
	"testing"
)

func testCodec(t *testing.T) Codec {
	t.Helper()
	cal, err := ComputeCalibration(0.015, 5.0)
	if err != nil {
		t.Fatalf("ComputeCalibration: %v", err)
	}
	codec, err := NewCodec(cal)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestDecodeSigned24(t *testing.T) {
	cases := []struct {
		raw  uint32
		want int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, 8388607},
		{0x800000, -8388608},
		{0xFFFFFF, -1},
		{0xFFFFF0, -16},
	}
	for _, c := range cases {
		if got := DecodeSigned24(c.raw); got != c.want {
			t.Errorf("DecodeSigned24(%#06x) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestDecodePolicy(t *testing.T) {
	codec := testCodec(t)
	lsb := codec.Calibration().CurrentLSB

	cases := []struct {
		name string
		kind RegisterKind
		raw  uint32
		want float64
	}{
		{"vbus one count", KindBusVoltage, 0x000010, 195.3125e-6},
		{"vbus msb not sign", KindBusVoltage, 0x800000, float64(0x800000>>4) * 195.3125e-6},
		{"current positive", KindCurrent, 0x000010, lsb * 1000},
		{"current negative", KindCurrent, 0xFFFFF0, -lsb * 1000},
		{"power no shift", KindPower, 0x000001, 3.2 * lsb * 1000},
		{"energy", KindEnergy, 0x000001, 16 * 3.2 * lsb},
		{"charge negative", KindCharge, 0xFFFFFF, -lsb},
	}
	for _, c := range cases {
		got := codec.Decode(c.kind, c.raw)
		if math.Abs(got-c.want) > math.Abs(c.want)*1e-12 {
			t.Errorf("%s: Decode(%v, %#06x) = %g, want %g", c.name, c.kind, c.raw, got, c.want)
		}
	}
}

// A 4-bit shift wrongly applied to POWER divides every reading by 16. That
// exact regression shipped once; pin the ratio so it cannot come back.
func TestPowerDecodeNotShifted(t *testing.T) {
	codec := testCodec(t)
	const raw = 0x000100

	got := codec.Decode(KindPower, raw)
	shifted := float64(raw>>4) * codec.Calibration().PowerLSB * 1000
	if got != 16*shifted {
		t.Fatalf("POWER decode = %g, want 16× the shifted value %g", got, shifted)
	}
}

func TestDecodePanicsOnInvalidKind(t *testing.T) {
	codec := testCodec(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range kind")
		}
	}()
	codec.Decode(kindCount, 0)
}
