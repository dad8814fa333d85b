// Package simulation synthesizes reading series that deterministically
// trip one chosen guard. Test support only, never a production dependency.
package simulation

import (
	"time"

	"metering-service/internal/models"
)

// Scenario tags the guard a synthesized series is meant to trip.
type Scenario string

const (
	ScenarioBurst     Scenario = "BURST"
	ScenarioDrip      Scenario = "DRIP"
	ScenarioHighUsage Scenario = "HIGH_USAGE"
)

// Synthesize returns a time-ascending series for the meter that trips
// exactly the scenario's guard under default detector thresholds. Unknown
// scenarios yield nil.
func Synthesize(scenario Scenario, meterID string, start time.Time) []models.MeterReading {
	switch scenario {
	case ScenarioBurst:
		// A quiet hour, then 610 units in one hour: past the 500/h burst
		// limit, while the zero-flow interval keeps SENTINEL quiet.
		return series(meterID, start, time.Hour, 1000, 0, 610)
	case ScenarioDrip:
		// 5 units every hour, never stopping. Too short a history for
		// GUARDIAN, far below the burst limit.
		return series(meterID, start, time.Hour, 1000, 5, 5, 5, 5)
	case ScenarioHighUsage:
		return highUsage(meterID, start)
	default:
		return nil
	}
}

// series builds cumulative readings from a base value and per-interval
// deltas.
func series(meterID string, start time.Time, step time.Duration, base float64, deltas ...float64) []models.MeterReading {
	out := []models.MeterReading{{MeterID: meterID, Timestamp: start, Value: base}}
	value := base
	for i, d := range deltas {
		value += d
		out = append(out, models.MeterReading{
			MeterID:   meterID,
			Timestamp: start.Add(time.Duration(i+1) * step),
			Value:     value,
		})
	}
	return out
}

// highUsage is a month of steady consumption followed by a one-hour spike
// that projects to well over three times the daily average. Zero-flow
// readings right before the spike keep SENTINEL out, and the spike rate
// stays under the burst limit.
func highUsage(meterID string, start time.Time) []models.MeterReading {
	var out []models.MeterReading
	for day := 0; day <= 30; day++ {
		out = append(out, models.MeterReading{
			MeterID:   meterID,
			Timestamp: start.AddDate(0, 0, day),
			Value:     float64(day) * 100,
		})
	}
	last := out[len(out)-1]
	out = append(out,
		models.MeterReading{MeterID: meterID, Timestamp: last.Timestamp.Add(2 * time.Hour), Value: last.Value},
		models.MeterReading{MeterID: meterID, Timestamp: last.Timestamp.Add(4 * time.Hour), Value: last.Value},
		models.MeterReading{MeterID: meterID, Timestamp: last.Timestamp.Add(5 * time.Hour), Value: last.Value + 50},
	)
	return out
}
