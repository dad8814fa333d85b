package models

import "time"

// UtilityCategory is the advance-payment bucket. Water is a single bucket
// shared by hot and cold sub-meters.
type UtilityCategory string

const (
	CategoryWater       UtilityCategory = "WATER"
	CategoryElectricity UtilityCategory = "ELECTRICITY"
)

// TariffRate is an effective-dated unit price for one meter type. A lookup
// for a reference date resolves to the rate with the greatest
// ValidFrom <= referenceDate.
type TariffRate struct {
	Type         MeterType `json:"type"`
	PricePerUnit float64   `json:"price_per_unit"`
	ValidFrom    time.Time `json:"valid_from"`
}

// AdvancePayment is the flat monthly amount an apartment pays up front for
// one utility category.
type AdvancePayment struct {
	ApartmentID   string          `json:"apartment_id"`
	Category      UtilityCategory `json:"category"`
	MonthlyAmount float64         `json:"monthly_amount"`
}

// ReportLine is the per-meter-type slice of a reconciliation report.
type ReportLine struct {
	Consumption float64 `json:"consumption"`
	ActualCost  float64 `json:"actual_cost"`
	PaidAdvance float64 `json:"paid_advance"`
	Balance     float64 `json:"balance"`
}

// ReportSummary totals a report across all meter types.
type ReportSummary struct {
	TotalActualCost  float64 `json:"total_actual_cost"`
	TotalPaidAdvance float64 `json:"total_paid_advance"`
	TotalBalance     float64 `json:"total_balance"`
}

// ReconciliationReport is the outcome of a tasaus run: metered actual cost
// reconciled against flat advances for one apartment and period. Reports
// are immutable once computed.
type ReconciliationReport struct {
	ID          string                   `json:"id"`
	ApartmentID string                   `json:"apartment_id"`
	PeriodStart time.Time                `json:"period_start"`
	PeriodEnd   time.Time                `json:"period_end"`
	PerType     map[MeterType]ReportLine `json:"per_type"`
	Summary     ReportSummary            `json:"summary"`
	CreatedAt   time.Time                `json:"created_at"`
}
