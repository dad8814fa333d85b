// Package detector evaluates leak guards over a single meter's reading
// history. Evaluation is pure: guards never persist anything and never fail
// on bad input; malformed or insufficient data yields no alerts.
package detector

import (
	"time"

	"metering-service/internal/models"
)

// Config holds the guard thresholds. Zero values are replaced with the
// defaults from DefaultConfig.
type Config struct {
	// BurstRatePerHour is the DEFENDER threshold: last-interval flow above
	// this raises a HIGH alert.
	BurstRatePerHour float64
	// DripFloorPerHour is the SENTINEL threshold: a window whose minimum
	// interval flow stays above this raises a LOW alert.
	DripFloorPerHour float64
	// WindowSize is how many trailing readings SENTINEL inspects.
	WindowSize int
	// GuardianMultiplier is how many times the trailing daily average the
	// projected daily consumption must exceed to raise a MEDIUM alert.
	GuardianMultiplier float64
	// GuardianLookback bounds the history used for the trailing average.
	GuardianLookback time.Duration
	// GuardianMinHistory is the minimum span the lookback must cover before
	// GUARDIAN trusts the average.
	GuardianMinHistory time.Duration
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		BurstRatePerHour:   500,
		DripFloorPerHour:   2,
		WindowSize:         5,
		GuardianMultiplier: 3,
		GuardianLookback:   30 * 24 * time.Hour,
		GuardianMinHistory: 7 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BurstRatePerHour <= 0 {
		c.BurstRatePerHour = def.BurstRatePerHour
	}
	if c.DripFloorPerHour <= 0 {
		c.DripFloorPerHour = def.DripFloorPerHour
	}
	if c.WindowSize < 3 {
		c.WindowSize = def.WindowSize
	}
	if c.GuardianMultiplier <= 0 {
		c.GuardianMultiplier = def.GuardianMultiplier
	}
	if c.GuardianLookback <= 0 {
		c.GuardianLookback = def.GuardianLookback
	}
	if c.GuardianMinHistory <= 0 {
		c.GuardianMinHistory = def.GuardianMinHistory
	}
	return c
}

// Detector runs the three guards over a reading window.
type Detector struct {
	cfg Config
}

// New constructs a Detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Evaluate runs all guards over one meter's readings, oldest first.
// Fewer than two readings yields no alerts.
func (d *Detector) Evaluate(apartmentID string, readings []models.MeterReading) []models.AlertRequest {
	if len(readings) < 2 {
		return nil
	}

	var out []models.AlertRequest
	if req, ok := d.checkBurst(apartmentID, readings); ok {
		out = append(out, req)
	}
	if req, ok := d.checkDrip(apartmentID, readings); ok {
		out = append(out, req)
	}
	if req, ok := d.checkVolume(apartmentID, readings); ok {
		out = append(out, req)
	}
	return out
}

// checkBurst is the DEFENDER guard: an abrupt, large flow step over the
// last interval.
func (d *Detector) checkBurst(apartmentID string, readings []models.MeterReading) (models.AlertRequest, bool) {
	n := len(readings)
	rate, ok := intervalRate(readings[n-2], readings[n-1])
	if !ok || rate <= d.cfg.BurstRatePerHour {
		return models.AlertRequest{}, false
	}
	return models.AlertRequest{
		ApartmentID: apartmentID,
		Severity:    models.SeverityHigh,
		Trigger:     models.TriggerDefender,
		Metadata: models.BurstMetadata{
			FlowRate:  rate,
			Threshold: d.cfg.BurstRatePerHour,
		},
	}, true
}

// checkDrip is the SENTINEL guard: over the trailing window, the minimum
// interval flow never drops to the floor. Genuine zero-usage periods
// (overnight) show near-zero flow; a floor above zero across the whole
// window means a drip that never stops.
func (d *Detector) checkDrip(apartmentID string, readings []models.MeterReading) (models.AlertRequest, bool) {
	window := readings
	if len(window) > d.cfg.WindowSize {
		window = window[len(window)-d.cfg.WindowSize:]
	}
	if len(window) < 3 {
		return models.AlertRequest{}, false
	}

	minFlow := -1.0
	for i := 1; i < len(window); i++ {
		rate, ok := intervalRate(window[i-1], window[i])
		if !ok {
			// A meter swap or clock skew inside the window: continuous
			// flow cannot be claimed, abstain.
			return models.AlertRequest{}, false
		}
		if minFlow < 0 || rate < minFlow {
			minFlow = rate
		}
	}
	if minFlow < 0 || minFlow <= d.cfg.DripFloorPerHour {
		return models.AlertRequest{}, false
	}
	return models.AlertRequest{
		ApartmentID: apartmentID,
		Severity:    models.SeverityLow,
		Trigger:     models.TriggerSentinel,
		Metadata: models.DripMetadata{
			MinFlow:   minFlow,
			Threshold: d.cfg.DripFloorPerHour,
			Window:    len(window),
		},
	}, true
}

// checkVolume is the GUARDIAN guard: the last interval's flow projected to
// a full day is compared against the trailing daily average over the
// lookback. The guard stays silent until the history spans GuardianMinHistory
// and shows positive average consumption.
func (d *Detector) checkVolume(apartmentID string, readings []models.MeterReading) (models.AlertRequest, bool) {
	n := len(readings)
	last := readings[n-1]

	rate, ok := intervalRate(readings[n-2], last)
	if !ok {
		return models.AlertRequest{}, false
	}
	projected := rate * 24

	// Trailing average: consumption between the oldest in-lookback reading
	// and the last reading, divided by the days spanned. Meter-replacement
	// drops reset the baseline to the reading after the drop.
	cutoff := last.Timestamp.Add(-d.cfg.GuardianLookback)
	start := 0
	for start < n-1 && readings[start].Timestamp.Before(cutoff) {
		start++
	}
	for i := start + 1; i < n; i++ {
		if readings[i].Value < readings[i-1].Value {
			start = i
		}
	}
	span := last.Timestamp.Sub(readings[start].Timestamp)
	if span < d.cfg.GuardianMinHistory {
		return models.AlertRequest{}, false
	}
	avgDaily := (last.Value - readings[start].Value) / (span.Hours() / 24)
	if avgDaily <= 0 {
		return models.AlertRequest{}, false
	}

	if projected <= d.cfg.GuardianMultiplier*avgDaily {
		return models.AlertRequest{}, false
	}
	return models.AlertRequest{
		ApartmentID: apartmentID,
		Severity:    models.SeverityMedium,
		Trigger:     models.TriggerGuardian,
		Metadata: models.VolumeMetadata{
			ProjectedDaily:  projected,
			TrailingAverage: avgDaily,
			Multiplier:      d.cfg.GuardianMultiplier,
		},
	}, true
}

// intervalRate returns the flow rate in units/hour between two readings.
// Non-positive time deltas (clock skew, duplicate timestamps) and value
// decreases (meter replacement) report ok=false instead of a fabricated
// or negative rate.
func intervalRate(prev, cur models.MeterReading) (float64, bool) {
	dh := cur.Timestamp.Sub(prev.Timestamp).Hours()
	if dh <= 0 {
		return 0, false
	}
	dv := cur.Value - prev.Value
	if dv < 0 {
		return 0, false
	}
	return dv / dh, true
}
