// Package alerts owns the leak-alert lifecycle: dedup, persistence and
// notification routing.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"metering-service/internal/models"
	"metering-service/internal/notify"
)

// ErrAlertPersistence wraps any storage failure while creating an alert.
// The caller (ingestion pipeline) owns retry of the whole batch.
var ErrAlertPersistence = errors.New("alert persistence failed")

// Store persists leak alerts. CreateIfAbsent must be a conditional write:
// it inserts only when no ACTIVE alert with the same (apartment, trigger)
// exists, atomically, so concurrent distributed ingestion cannot
// double-create. It reports whether the insert happened.
type Store interface {
	CreateIfAbsent(ctx context.Context, alert models.LeakAlert) (bool, error)
	ListByApartment(ctx context.Context, apartmentID string, status models.AlertStatus) ([]models.LeakAlert, error)
	ListStaleActive(ctx context.Context, olderThan time.Duration) ([]models.LeakAlert, error)
	Resolve(ctx context.Context, id string) error
}

// Publisher receives alerts that were actually created, e.g. a live feed.
type Publisher interface {
	Publish(alert models.LeakAlert)
}

// Manager deduplicates, persists and routes leak alerts.
type Manager struct {
	store     Store
	gateway   notify.Gateway
	publisher Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

// New constructs a Manager. publisher may be nil.
func New(store Store, gateway notify.Gateway, publisher Publisher, logger *logrus.Logger) *Manager {
	return &Manager{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Create persists the requested alert unless an ACTIVE one with the same
// (apartment, trigger) already exists, in which case it is a no-op: the
// incident is already tracked. On a fresh alert it routes notifications by
// severity. The returned alert is nil when deduplicated.
func (m *Manager) Create(ctx context.Context, req models.AlertRequest) (*models.LeakAlert, error) {
	alert := models.LeakAlert{
		ID:          uuid.New().String(),
		ApartmentID: req.ApartmentID,
		Severity:    req.Severity,
		Trigger:     req.Trigger,
		Status:      models.StatusActive,
		Metadata:    req.Metadata,
		CreatedAt:   m.now(),
	}

	created, err := m.store.CreateIfAbsent(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlertPersistence, err)
	}
	if !created {
		m.logger.Debugf("Alert %s/%s already active for apartment %s, skipping", req.Trigger, req.Severity, req.ApartmentID)
		return nil, nil
	}

	m.logger.Infof("Created %s alert %s for apartment %s (trigger %s)", alert.Severity, alert.ID, alert.ApartmentID, alert.Trigger)
	m.route(ctx, alert)
	if m.publisher != nil {
		m.publisher.Publish(alert)
	}
	return &alert, nil
}

// route notifies the resident always, and the board immediately for HIGH.
// LOW and MEDIUM escalation to the board is driven later by an external
// scheduler sweeping StaleActive. Delivery failures are logged, not
// returned: the gateway is at-least-once and the alert is already stored.
func (m *Manager) route(ctx context.Context, alert models.LeakAlert) {
	title, message := describe(alert)
	if err := m.gateway.SendPush(ctx, notify.RecipientResident, title, message); err != nil {
		m.logger.Errorf("Resident push for alert %s failed: %v", alert.ID, err)
	}
	if alert.Severity == models.SeverityHigh {
		if err := m.gateway.SendPush(ctx, notify.RecipientBoard, title, message); err != nil {
			m.logger.Errorf("Board push for alert %s failed: %v", alert.ID, err)
		}
	}
}

// ListByApartment returns an apartment's alerts, optionally filtered by
// status (empty status means all).
func (m *Manager) ListByApartment(ctx context.Context, apartmentID string, status models.AlertStatus) ([]models.LeakAlert, error) {
	return m.store.ListByApartment(ctx, apartmentID, status)
}

// StaleActive returns ACTIVE alerts older than the given duration. An
// external escalation scheduler polls this to notify the board about
// incidents nobody resolved.
func (m *Manager) StaleActive(ctx context.Context, olderThan time.Duration) ([]models.LeakAlert, error) {
	return m.store.ListStaleActive(ctx, olderThan)
}

// Resolve marks an alert RESOLVED.
func (m *Manager) Resolve(ctx context.Context, id string) error {
	return m.store.Resolve(ctx, id)
}

// describe renders a notification title and body for an alert.
func describe(alert models.LeakAlert) (string, string) {
	switch meta := alert.Metadata.(type) {
	case models.BurstMetadata:
		return "Water leak suspected: sudden flow spike",
			fmt.Sprintf("Apartment %s: flow of %.0f units/hour exceeds the %.0f units/hour burst limit. Check for a burst pipe.",
				alert.ApartmentID, meta.FlowRate, meta.Threshold)
	case models.DripMetadata:
		return "Possible continuous leak",
			fmt.Sprintf("Apartment %s: consumption never dropped below %.1f units/hour over the last %d readings. A fixture may be dripping.",
				alert.ApartmentID, meta.MinFlow, meta.Window)
	case models.VolumeMetadata:
		return "Unusually high consumption",
			fmt.Sprintf("Apartment %s: projected %.0f units/day against a %.0f units/day average.",
				alert.ApartmentID, meta.ProjectedDaily, meta.TrailingAverage)
	default:
		return "Utility anomaly detected",
			fmt.Sprintf("Apartment %s: %s alert (%s).", alert.ApartmentID, alert.Severity, alert.Trigger)
	}
}
