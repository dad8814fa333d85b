package db

import (
	"context"
	"fmt"
	"time"

	"metering-service/internal/models"
)

// CreateIfAbsent inserts the alert unless an ACTIVE one with the same
// (apartment, trigger) already exists. The conditional insert plus the
// partial unique index uq_leak_alert_active (see schema.sql) keeps the
// at-most-one-ACTIVE invariant even under concurrent distributed
// ingestion. Reports whether a row was inserted.
func (d *DB) CreateIfAbsent(ctx context.Context, alert models.LeakAlert) (bool, error) {
	meta, err := models.EncodeMetadata(alert.Metadata)
	if err != nil {
		return false, err
	}

	query := `
    INSERT INTO leak_alert (id, apartment_id, severity, trigger, status, metadata, created_at)
    SELECT $1, $2, $3, $4, $5, $6, $7
    WHERE NOT EXISTS (
        SELECT 1 FROM leak_alert
        WHERE apartment_id = $2 AND trigger = $4 AND status = $5
    )
    ON CONFLICT (apartment_id, trigger) WHERE status = 'ACTIVE' DO NOTHING`

	tag, err := d.Pool.Exec(ctx, query,
		alert.ID,
		alert.ApartmentID,
		alert.Severity,
		alert.Trigger,
		models.StatusActive,
		meta,
		alert.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByApartment fetches an apartment's alerts, newest first. An empty
// status means no status filter.
func (d *DB) ListByApartment(ctx context.Context, apartmentID string, status models.AlertStatus) ([]models.LeakAlert, error) {
	query := `
	SELECT id, apartment_id, severity, trigger, status, metadata, created_at, resolved_at
	FROM leak_alert
	WHERE apartment_id = $1`

	args := []any{apartmentID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListStaleActive fetches ACTIVE alerts created more than olderThan ago,
// oldest first, for the external escalation scheduler.
func (d *DB) ListStaleActive(ctx context.Context, olderThan time.Duration) ([]models.LeakAlert, error) {
	query := `
	SELECT id, apartment_id, severity, trigger, status, metadata, created_at, resolved_at
	FROM leak_alert
	WHERE status = $1 AND created_at < $2
	ORDER BY created_at ASC`

	rows, err := d.Pool.Query(ctx, query, models.StatusActive, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to get stale alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// Resolve marks an alert RESOLVED.
func (d *DB) Resolve(ctx context.Context, id string) error {
	tag, err := d.Pool.Exec(ctx,
		`UPDATE leak_alert SET status = $1, resolved_at = $2 WHERE id = $3 AND status = $4`,
		models.StatusResolved, time.Now(), id, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not found or already resolved", id)
	}
	return nil
}

type alertRows interface {
	Next() bool
	Scan(dest ...any) error
}

func scanAlerts(rows alertRows) ([]models.LeakAlert, error) {
	var list []models.LeakAlert
	for rows.Next() {
		var (
			alert models.LeakAlert
			meta  []byte
		)
		err := rows.Scan(
			&alert.ID,
			&alert.ApartmentID,
			&alert.Severity,
			&alert.Trigger,
			&alert.Status,
			&meta,
			&alert.CreatedAt,
			&alert.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.Metadata, err = models.DecodeMetadata(alert.Trigger, meta)
		if err != nil {
			return nil, err
		}
		list = append(list, alert)
	}
	return list, nil
}
