package storage

import (
	"strconv"

	"powermon-go/types"
)

// csvCodec renders log entries as CSV rows for a fixed channel order.
// Floats use 4 decimal places, matching the historical log format.
type csvCodec struct {
	channels []string
}

func newCSVCodec(channels []string) *csvCodec {
	return &csvCodec{channels: channels}
}

func (c *csvCodec) Header() []byte {
	b := []byte("RunID,State,Timestamp_ms")
	for _, name := range c.channels {
		b = append(b, ","...)
		b = append(b, name...)
		b = append(b, "_Voltage_V,"...)
		b = append(b, name...)
		b = append(b, "_Current_mA,"...)
		b = append(b, name...)
		b = append(b, "_Power_HW_mW,"...)
		b = append(b, name...)
		b = append(b, "_Power_Calc_mW"...)
	}
	return append(b, '\n')
}

func (c *csvCodec) Row(e types.LogEntry) []byte {
	b := strconv.AppendUint(nil, uint64(e.RunID), 10)
	b = append(b, ',')
	b = append(b, e.State...)
	b = append(b, ',')
	b = strconv.AppendInt(b, e.TimestampMs, 10)
	for i := range c.channels {
		var s types.MeasurementSample
		if i < len(e.Samples) {
			s = e.Samples[i]
		}
		b = appendFixed(b, s.BusVoltageV)
		b = appendFixed(b, s.CurrentMA)
		b = appendFixed(b, s.PowerHwMW)
		b = appendFixed(b, s.PowerCalcMW)
	}
	return append(b, '\n')
}

func appendFixed(b []byte, v float64) []byte {
	b = append(b, ',')
	return strconv.AppendFloat(b, v, 'f', 4, 64)
}
