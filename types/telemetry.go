package types

// MeasurementSample is one channel's decoded readings for a single tick.
// A failed bus transaction leaves the sample zeroed with Valid=false; the
// tick itself carries on.
type MeasurementSample struct {
	Channel     string
	TimestampMs int64
	BusVoltageV float64
	CurrentMA   float64
	// PowerHwMW is the device's own power register reading.
	PowerHwMW float64
	// PowerCalcMW is V×I computed host-side as an independent cross-check
	// of the hardware power path.
	PowerCalcMW float64
	EnergyJ     float64
	ChargeC     float64
	Diagnostic  uint16
	Valid       bool
}

// LogEntry is one composite row: every configured channel sampled on the
// same tick. Owned by the storage writer's buffer until flushed.
type LogEntry struct {
	RunID       uint32
	Seq         uint64
	State       string
	TimestampMs int64
	Samples     []MeasurementSample
}

// TotalPowerMW sums the hardware power readings of the valid channels.
func (e *LogEntry) TotalPowerMW() float64 {
	var total float64
	for i := range e.Samples {
		if e.Samples[i].Valid {
			total += e.Samples[i].PowerHwMW
		}
	}
	return total
}
