package powertest

import "powermon-go/types"

// Stats summarizes one state's dwell: entry counts, sample validity, and
// the spread of total calculated power across entries. Only entries with
// at least one valid sample contribute to the power figures.
type Stats struct {
	State          string
	Entries        int
	ValidSamples   int
	InvalidSamples int

	powerEntries int
	MinPowerMW   float64
	MaxPowerMW   float64
	SumPowerMW   float64
}

func (s *Stats) observe(e *types.LogEntry) {
	s.Entries++
	anyValid := false
	for _, m := range e.Samples {
		if m.Valid {
			s.ValidSamples++
			anyValid = true
		} else {
			s.InvalidSamples++
		}
	}
	if !anyValid {
		return
	}

	p := e.TotalPowerMW()
	if s.powerEntries == 0 || p < s.MinPowerMW {
		s.MinPowerMW = p
	}
	if s.powerEntries == 0 || p > s.MaxPowerMW {
		s.MaxPowerMW = p
	}
	s.SumPowerMW += p
	s.powerEntries++
}

// AvgPowerMW is the mean total power over entries that had valid samples.
func (s Stats) AvgPowerMW() float64 {
	if s.powerEntries == 0 {
		return 0
	}
	return s.SumPowerMW / float64(s.powerEntries)
}
