// Package billing computes utility-cost reconciliation (tasaus): metered
// actual consumption priced against tariffs and settled against flat
// monthly advance payments.
package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"metering-service/internal/models"
)

// ErrApartmentNotFound is returned for an unknown apartment. An apartment
// with zero meters is not an error, it yields an all-zero report.
var ErrApartmentNotFound = errors.New("apartment not found")

// ErrNoTariff is returned when no rate is configured for a meter type at
// the reference date. Defaulting to zero would silently understate bills.
var ErrNoTariff = errors.New("no tariff configured")

// daysPerMonth converts an arbitrary calendar span into an equivalent
// month count for advance accrual.
const daysPerMonth = 30.44

var meterTypes = []models.MeterType{
	models.MeterWaterHot,
	models.MeterWaterCold,
	models.MeterElectricity,
}

// Source is the consistent snapshot a reconciliation run reads from.
//
// MetersByApartment returns ErrApartmentNotFound for an unknown apartment
// and an empty slice for a known one without meters.
// LatestReadingAtOrBefore returns nil when the meter has no reading at or
// before the given time. PriceAt returns ErrNoTariff on a lookup miss.
type Source interface {
	MetersByApartment(ctx context.Context, apartmentID string) ([]models.Meter, error)
	LatestReadingAtOrBefore(ctx context.Context, meterID string, at time.Time) (*models.MeterReading, error)
	PriceAt(ctx context.Context, meterType models.MeterType, asOf time.Time) (float64, error)
	Advances(ctx context.Context, apartmentID string) (map[models.UtilityCategory]float64, error)
}

// Snapshotter runs a function against one consistent read snapshot, so a
// reconciliation never mixes data from different points in time.
type Snapshotter interface {
	ReadSnapshot(ctx context.Context, fn func(Source) error) error
}

// Reconciler computes reconciliation reports.
type Reconciler struct {
	snap   Snapshotter
	logger *logrus.Logger
}

// New constructs a Reconciler.
func New(snap Snapshotter, logger *logrus.Logger) *Reconciler {
	return &Reconciler{snap: snap, logger: logger}
}

// Calculate produces the reconciliation report for one apartment and
// period. It honors ctx cancellation between meters, so interactive calls
// over large histories stay boundable.
func (r *Reconciler) Calculate(ctx context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error) {
	if !periodStart.Before(periodEnd) {
		return nil, fmt.Errorf("period start %s is not before end %s", periodStart.Format(time.RFC3339), periodEnd.Format(time.RFC3339))
	}

	var report *models.ReconciliationReport
	err := r.snap.ReadSnapshot(ctx, func(src Source) error {
		var err error
		report, err = r.calculate(ctx, src, apartmentID, periodStart, periodEnd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Reconciler) calculate(ctx context.Context, src Source, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error) {
	meters, err := src.MetersByApartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}

	months := monthsIn(periodStart, periodEnd)

	consumption := map[models.MeterType]float64{}
	for _, meter := range meters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := r.meterConsumption(ctx, src, meter, periodStart, periodEnd)
		if err != nil {
			return nil, err
		}
		consumption[meter.Type] += c
	}

	cost := map[models.MeterType]float64{}
	for _, t := range meterTypes {
		if consumption[t] == 0 {
			continue
		}
		price, err := src.PriceAt(ctx, t, periodEnd)
		if err != nil {
			return nil, fmt.Errorf("pricing %s for apartment %s: %w", t, apartmentID, err)
		}
		cost[t] = roundCents(consumption[t] * price)
	}

	// A meterless apartment yields an all-zero report: with nothing
	// metered there is nothing to reconcile advances against.
	paid := map[models.MeterType]float64{}
	if len(meters) > 0 {
		advances, err := src.Advances(ctx, apartmentID)
		if err != nil {
			return nil, fmt.Errorf("loading advances for apartment %s: %w", apartmentID, err)
		}
		paid = allocateAdvances(cost, advances, months)
	}

	report := &models.ReconciliationReport{
		ID:          uuid.New().String(),
		ApartmentID: apartmentID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		PerType:     make(map[models.MeterType]models.ReportLine, len(meterTypes)),
		CreatedAt:   time.Now(),
	}
	for _, t := range meterTypes {
		line := models.ReportLine{
			Consumption: consumption[t],
			ActualCost:  cost[t],
			PaidAdvance: paid[t],
			Balance:     roundCents(cost[t] - paid[t]),
		}
		report.PerType[t] = line
		report.Summary.TotalActualCost = roundCents(report.Summary.TotalActualCost + line.ActualCost)
		report.Summary.TotalPaidAdvance = roundCents(report.Summary.TotalPaidAdvance + line.PaidAdvance)
		report.Summary.TotalBalance = roundCents(report.Summary.TotalBalance + line.Balance)
	}
	return report, nil
}

// meterConsumption is the counter delta between the latest readings at or
// before each period boundary. A missing boundary reading yields zero,
// logged because it silently biases the bill downward and an operator
// should be able to see why.
func (r *Reconciler) meterConsumption(ctx context.Context, src Source, meter models.Meter, periodStart, periodEnd time.Time) (float64, error) {
	start, err := src.LatestReadingAtOrBefore(ctx, meter.ID, periodStart)
	if err != nil {
		return 0, fmt.Errorf("reading meter %s at period start: %w", meter.ID, err)
	}
	end, err := src.LatestReadingAtOrBefore(ctx, meter.ID, periodEnd)
	if err != nil {
		return 0, fmt.Errorf("reading meter %s at period end: %w", meter.ID, err)
	}
	if start == nil || end == nil {
		r.logger.Warnf("Meter %s (%s, apartment %s) is missing a boundary reading, counting zero consumption for the period", meter.ID, meter.Type, meter.ApartmentID)
		return 0, nil
	}
	if end.Value < start.Value {
		// Counter dropped inside the period: the meter was replaced.
		// Without the swap-out reading the delta is unknowable, so treat
		// it like a missing reading rather than negative flow.
		r.logger.Warnf("Meter %s counter decreased within the period (replacement?), counting zero consumption", meter.ID)
		return 0, nil
	}
	return end.Value - start.Value, nil
}

// allocateAdvances accrues monthly advances over the period and splits the
// shared water bucket between hot and cold proportional to cost share.
func allocateAdvances(cost map[models.MeterType]float64, advances map[models.UtilityCategory]float64, months int) map[models.MeterType]float64 {
	paid := map[models.MeterType]float64{}

	paid[models.MeterElectricity] = roundCents(advances[models.CategoryElectricity] * float64(months))

	waterAdvance := advances[models.CategoryWater] * float64(months)
	hot, cold := cost[models.MeterWaterHot], cost[models.MeterWaterCold]
	if hot+cold > 0 {
		hotRatio := hot / (hot + cold)
		paid[models.MeterWaterHot] = roundCents(waterAdvance * hotRatio)
		paid[models.MeterWaterCold] = roundCents(waterAdvance * (1 - hotRatio))
	}
	return paid
}

// monthsIn converts the period span to whole months, minimum one.
func monthsIn(start, end time.Time) int {
	months := int(math.Round(end.Sub(start).Hours() / (24 * daysPerMonth)))
	if months < 1 {
		months = 1
	}
	return months
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
