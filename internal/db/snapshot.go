package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"metering-service/internal/billing"
	"metering-service/internal/models"
)

// MetersByApartment lists an apartment's meters. An unknown apartment is
// billing.ErrApartmentNotFound; a known one without meters is an empty
// slice.
func (s *snapshot) MetersByApartment(ctx context.Context, apartmentID string) ([]models.Meter, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM apartment WHERE id = $1)`, apartmentID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check apartment %s: %w", apartmentID, err)
	}
	if !exists {
		return nil, fmt.Errorf("apartment %s: %w", apartmentID, billing.ErrApartmentNotFound)
	}

	rows, err := s.tx.Query(ctx, `
	SELECT id, apartment_id, type FROM meter WHERE apartment_id = $1 ORDER BY id`,
		apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get meters for apartment %s: %w", apartmentID, err)
	}
	defer rows.Close()

	meters := []models.Meter{}
	for rows.Next() {
		var m models.Meter
		if err := rows.Scan(&m.ID, &m.ApartmentID, &m.Type); err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		meters = append(meters, m)
	}
	return meters, nil
}

// LatestReadingAtOrBefore returns the newest reading not after at, or nil
// when the meter has none that early.
func (s *snapshot) LatestReadingAtOrBefore(ctx context.Context, meterID string, at time.Time) (*models.MeterReading, error) {
	var r models.MeterReading
	err := s.tx.QueryRow(ctx, `
	SELECT meter_id, ts, value
	FROM meter_reading
	WHERE meter_id = $1 AND ts <= $2
	ORDER BY ts DESC
	LIMIT 1`,
		meterID, at,
	).Scan(&r.MeterID, &r.Timestamp, &r.Value)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading for meter %s: %w", meterID, err)
	}
	return &r, nil
}

// PriceAt resolves the tariff with the greatest valid_from <= asOf. A miss
// is billing.ErrNoTariff: defaulting to zero would silently understate
// bills.
func (s *snapshot) PriceAt(ctx context.Context, meterType models.MeterType, asOf time.Time) (float64, error) {
	var price float64
	err := s.tx.QueryRow(ctx, `
	SELECT price_per_unit
	FROM tariff_rate
	WHERE type = $1 AND valid_from <= $2
	ORDER BY valid_from DESC
	LIMIT 1`,
		meterType, asOf,
	).Scan(&price)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%s as of %s: %w", meterType, asOf.Format(time.RFC3339), billing.ErrNoTariff)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get tariff for %s: %w", meterType, err)
	}
	return price, nil
}

// Advances returns the apartment's monthly advance amounts per category.
// Unconfigured categories are simply absent.
func (s *snapshot) Advances(ctx context.Context, apartmentID string) (map[models.UtilityCategory]float64, error) {
	rows, err := s.tx.Query(ctx, `
	SELECT category, monthly_amount
	FROM advance_payment
	WHERE apartment_id = $1`,
		apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get advances for apartment %s: %w", apartmentID, err)
	}
	defer rows.Close()

	out := map[models.UtilityCategory]float64{}
	for rows.Next() {
		var (
			category models.UtilityCategory
			amount   float64
		)
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan advance: %w", err)
		}
		out[category] = amount
	}
	return out, nil
}
