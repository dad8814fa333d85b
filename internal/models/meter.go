package models

import "time"

// MeterType identifies which utility a meter measures.
type MeterType string

const (
	MeterWaterHot    MeterType = "WATER_HOT"
	MeterWaterCold   MeterType = "WATER_COLD"
	MeterElectricity MeterType = "ELECTRICITY"
)

// Category maps a meter type to its advance-payment bucket. Hot and cold
// water share a single WATER bucket.
func (t MeterType) Category() UtilityCategory {
	if t == MeterElectricity {
		return CategoryElectricity
	}
	return CategoryWater
}

// Meter is a physical utility meter installed in an apartment.
type Meter struct {
	ID          string    `json:"id"`
	ApartmentID string    `json:"apartment_id"`
	Type        MeterType `json:"type"`
}

// MeterReading is one cumulative counter sample. Values are non-decreasing
// while a meter is in service; a decrease means the meter was replaced and
// must never be read as negative consumption.
type MeterReading struct {
	MeterID   string    `json:"meter_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
