// Package api is the operator-facing read surface: alert queries, the
// escalation scheduler's stale-alert feed, on-demand reconciliation and a
// live alert stream.
package api

import (
	"context"
	"time"

	"metering-service/internal/models"
)

// AlertService is what the handlers need from the alert manager.
type AlertService interface {
	ListByApartment(ctx context.Context, apartmentID string, status models.AlertStatus) ([]models.LeakAlert, error)
	StaleActive(ctx context.Context, olderThan time.Duration) ([]models.LeakAlert, error)
	Resolve(ctx context.Context, id string) error
}

// Reconciler computes reconciliation reports.
type Reconciler interface {
	Calculate(ctx context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error)
}

// ReportStore persists computed reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report models.ReconciliationReport) error
	ReportByPeriod(ctx context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error)
}

// ReportCache is an optional fast path in front of the reconciler.
type ReportCache interface {
	Get(ctx context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error)
	Set(ctx context.Context, report models.ReconciliationReport) error
}
