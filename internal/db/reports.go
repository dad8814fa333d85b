package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"metering-service/internal/models"
)

// SaveReport persists a computed reconciliation report. Reports are
// immutable artifacts: recomputing the same (apartment, period) replaces
// nothing and keeps the first stored version.
func (d *DB) SaveReport(ctx context.Context, report models.ReconciliationReport) error {
	perType, err := json.Marshal(report.PerType)
	if err != nil {
		return fmt.Errorf("failed to encode report lines: %w", err)
	}
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode report summary: %w", err)
	}

	_, err = d.Pool.Exec(ctx, `
    INSERT INTO reconciliation_report (id, apartment_id, period_start, period_end, per_type, summary, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (apartment_id, period_start, period_end) DO NOTHING`,
		report.ID,
		report.ApartmentID,
		report.PeriodStart,
		report.PeriodEnd,
		perType,
		summary,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// ReportByPeriod fetches the stored report for an apartment and period, or
// nil when none was computed yet.
func (d *DB) ReportByPeriod(ctx context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error) {
	var (
		report  models.ReconciliationReport
		perType []byte
		summary []byte
	)
	err := d.Pool.QueryRow(ctx, `
	SELECT id, apartment_id, period_start, period_end, per_type, summary, created_at
	FROM reconciliation_report
	WHERE apartment_id = $1 AND period_start = $2 AND period_end = $3`,
		apartmentID, periodStart, periodEnd,
	).Scan(
		&report.ID,
		&report.ApartmentID,
		&report.PeriodStart,
		&report.PeriodEnd,
		&perType,
		&summary,
		&report.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := json.Unmarshal(perType, &report.PerType); err != nil {
		return nil, fmt.Errorf("failed to decode report lines: %w", err)
	}
	if err := json.Unmarshal(summary, &report.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode report summary: %w", err)
	}
	return &report, nil
}
