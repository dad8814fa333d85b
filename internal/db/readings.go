package db

import (
	"context"
	"fmt"
	"time"

	"metering-service/internal/models"
)

// AppendReading stores one cumulative counter sample. The series is
// append-only; re-delivered samples with an identical timestamp are
// ignored so batch retries stay idempotent.
func (d *DB) AppendReading(ctx context.Context, r models.MeterReading) error {
	_, err := d.Pool.Exec(ctx, `
    INSERT INTO meter_reading (meter_id, ts, value)
    VALUES ($1, $2, $3)
    ON CONFLICT (meter_id, ts) DO NOTHING`,
		r.MeterID, r.Timestamp, r.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading for meter %s: %w", r.MeterID, err)
	}
	return nil
}

// ReadingsSince fetches one meter's readings from since onward, oldest
// first, in the shape the detector expects.
func (d *DB) ReadingsSince(ctx context.Context, meterID string, since time.Time) ([]models.MeterReading, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT meter_id, ts, value
	FROM meter_reading
	WHERE meter_id = $1 AND ts >= $2
	ORDER BY ts ASC`,
		meterID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get readings for meter %s: %w", meterID, err)
	}
	defer rows.Close()

	var list []models.MeterReading
	for rows.Next() {
		var r models.MeterReading
		if err := rows.Scan(&r.MeterID, &r.Timestamp, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		list = append(list, r)
	}
	return list, nil
}

// MeterByID fetches a meter, or nil when unknown.
func (d *DB) MeterByID(ctx context.Context, id string) (*models.Meter, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT id, apartment_id, type FROM meter WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get meter %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	var m models.Meter
	if err := rows.Scan(&m.ID, &m.ApartmentID, &m.Type); err != nil {
		return nil, fmt.Errorf("failed to scan meter: %w", err)
	}
	return &m, nil
}
