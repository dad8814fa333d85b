package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity of a leak alert.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Trigger names the guard that raised an alert.
type Trigger string

const (
	TriggerDefender Trigger = "DEFENDER"
	TriggerSentinel Trigger = "SENTINEL"
	TriggerGuardian Trigger = "GUARDIAN"
)

// AlertStatus is the lifecycle state of a leak alert.
type AlertStatus string

const (
	StatusActive   AlertStatus = "ACTIVE"
	StatusResolved AlertStatus = "RESOLVED"
)

// AlertMetadata is the trigger-specific payload attached to an alert. Each
// guard has its own concrete shape so consumers can switch on the variant
// instead of digging through loose JSON.
type AlertMetadata interface {
	Kind() Trigger
}

// BurstMetadata is attached by the DEFENDER guard.
type BurstMetadata struct {
	FlowRate  float64 `json:"flow_rate"`
	Threshold float64 `json:"threshold"`
}

func (BurstMetadata) Kind() Trigger { return TriggerDefender }

// DripMetadata is attached by the SENTINEL guard.
type DripMetadata struct {
	MinFlow   float64 `json:"min_flow"`
	Threshold float64 `json:"threshold"`
	Window    int     `json:"window"`
}

func (DripMetadata) Kind() Trigger { return TriggerSentinel }

// VolumeMetadata is attached by the GUARDIAN guard.
type VolumeMetadata struct {
	ProjectedDaily  float64 `json:"projected_daily"`
	TrailingAverage float64 `json:"trailing_average"`
	Multiplier      float64 `json:"multiplier"`
}

func (VolumeMetadata) Kind() Trigger { return TriggerGuardian }

// LeakAlert is a persisted anomaly. At most one ACTIVE alert exists per
// (apartment, trigger) pair at any time.
type LeakAlert struct {
	ID          string        `json:"id"`
	ApartmentID string        `json:"apartment_id"`
	Severity    Severity      `json:"severity"`
	Trigger     Trigger       `json:"trigger"`
	Status      AlertStatus   `json:"status"`
	Metadata    AlertMetadata `json:"metadata"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// AlertRequest is what a guard emits: an alert that has not been
// deduplicated or persisted yet.
type AlertRequest struct {
	ApartmentID string
	Severity    Severity
	Trigger     Trigger
	Metadata    AlertMetadata
}

// EncodeMetadata serializes a metadata variant for storage.
func EncodeMetadata(m AlertMetadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert metadata: %w", err)
	}
	return b, nil
}

// DecodeMetadata restores the variant matching the alert's trigger.
func DecodeMetadata(trigger Trigger, raw []byte) (AlertMetadata, error) {
	var (
		m   AlertMetadata
		err error
	)
	switch trigger {
	case TriggerDefender:
		var v BurstMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case TriggerSentinel:
		var v DripMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	case TriggerGuardian:
		var v VolumeMetadata
		err = json.Unmarshal(raw, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown alert trigger %q", trigger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s metadata: %w", trigger, err)
	}
	return m, nil
}
