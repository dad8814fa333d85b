package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"metering-service/internal/billing"
	"metering-service/internal/models"
)

type fakeAlerts struct {
	stale []models.LeakAlert
}

func (f *fakeAlerts) ListByApartment(_ context.Context, apartmentID string, _ models.AlertStatus) ([]models.LeakAlert, error) {
	return []models.LeakAlert{{ID: "al-1", ApartmentID: apartmentID, Status: models.StatusActive}}, nil
}

func (f *fakeAlerts) StaleActive(_ context.Context, _ time.Duration) ([]models.LeakAlert, error) {
	return f.stale, nil
}

func (f *fakeAlerts) Resolve(_ context.Context, _ string) error { return nil }

type fakeReconciler struct {
	report *models.ReconciliationReport
	err    error
	calls  int
}

func (f *fakeReconciler) Calculate(_ context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.report
	r.ApartmentID = apartmentID
	r.PeriodStart = periodStart
	r.PeriodEnd = periodEnd
	return &r, nil
}

type fakeReports struct {
	saved []models.ReconciliationReport
}

func (f *fakeReports) SaveReport(_ context.Context, report models.ReconciliationReport) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReports) ReportByPeriod(_ context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error) {
	for i := range f.saved {
		r := f.saved[i]
		if r.ApartmentID == apartmentID && r.PeriodStart.Equal(periodStart) && r.PeriodEnd.Equal(periodEnd) {
			return &r, nil
		}
	}
	return nil, nil
}

type fakeCache struct {
	stored map[string]models.ReconciliationReport
}

func (f *fakeCache) key(apartmentID string, start, end time.Time) string {
	return apartmentID + start.String() + end.String()
}

func (f *fakeCache) Get(_ context.Context, apartmentID string, start, end time.Time) (*models.ReconciliationReport, error) {
	if r, ok := f.stored[f.key(apartmentID, start, end)]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeCache) Set(_ context.Context, report models.ReconciliationReport) error {
	f.stored[f.key(report.ApartmentID, report.PeriodStart, report.PeriodEnd)] = report
	return nil
}

func testRouter(t *testing.T, rec Reconciler, reports ReportStore, cache ReportCache) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := NewHandler(&fakeAlerts{}, rec, reports, cache, 48*time.Hour, logger)

	r := gin.New()
	r.GET("/apartments/:id/alerts", h.ListAlerts)
	r.GET("/apartments/:id/reconciliation", h.Reconcile)
	r.GET("/alerts/stale", h.StaleAlerts)
	r.POST("/alerts/:id/resolve", h.ResolveAlert)
	return r
}

func sampleReport() *models.ReconciliationReport {
	return &models.ReconciliationReport{
		ID:      "r1",
		PerType: map[models.MeterType]models.ReportLine{},
	}
}

func reconcileURL(apartment string) string {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return "/apartments/" + apartment + "/reconciliation?start=" + start.Format(time.RFC3339) + "&end=" + end.Format(time.RFC3339)
}

func TestReconcile_ComputesPersistsAndCaches(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{report: sampleReport()}
	reports := &fakeReports{}
	cache := &fakeCache{stored: map[string]models.ReconciliationReport{}}
	router := testRouter(t, rec, reports, cache)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, reconcileURL("a1"), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200, body %s", w.Code, w.Body.String())
	}
	if len(reports.saved) != 1 {
		t.Fatalf("saved reports=%d want 1", len(reports.saved))
	}
	if len(cache.stored) != 1 {
		t.Fatalf("cached reports=%d want 1", len(cache.stored))
	}

	// Second call hits the cache, not the reconciler.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, reconcileURL("a1"), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", w.Code)
	}
	if rec.calls != 1 {
		t.Fatalf("reconciler calls=%d want 1", rec.calls)
	}
}

func TestReconcile_ServesStoredReportWithoutRecomputing(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{report: sampleReport()}
	reports := &fakeReports{}
	// No cache: the Postgres store must be the durable fast path on its own.
	router := testRouter(t, rec, reports, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, reconcileURL("a1"), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200, body %s", w.Code, w.Body.String())
	}
	if rec.calls != 1 {
		t.Fatalf("reconciler calls=%d want 1", rec.calls)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, reconcileURL("a1"), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", w.Code)
	}
	if rec.calls != 1 {
		t.Fatalf("reconciler calls=%d want 1, stored report should be reused", rec.calls)
	}
	if len(reports.saved) != 1 {
		t.Fatalf("saved reports=%d want 1, reports are immutable", len(reports.saved))
	}
}

func TestReconcile_UnknownApartmentIs404(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{err: billing.ErrApartmentNotFound}
	router := testRouter(t, rec, &fakeReports{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, reconcileURL("ghost"), nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", w.Code)
	}
}

func TestReconcile_MissingTariffIs422(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{err: billing.ErrNoTariff}
	router := testRouter(t, rec, &fakeReports{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, reconcileURL("a1"), nil))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d want 422", w.Code)
	}
}

func TestReconcile_RejectsBadDates(t *testing.T) {
	t.Parallel()

	router := testRouter(t, &fakeReconciler{report: sampleReport()}, &fakeReports{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apartments/a1/reconciliation?start=notadate&end=2025-02-01T00:00:00Z", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", w.Code)
	}
}

func TestListAlerts_FiltersByStatus(t *testing.T) {
	t.Parallel()

	router := testRouter(t, &fakeReconciler{report: sampleReport()}, &fakeReports{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apartments/a1/alerts?status=ACTIVE", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", w.Code)
	}

	var body struct {
		Alerts []json.RawMessage `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Alerts) != 1 {
		t.Fatalf("alerts=%d want 1", len(body.Alerts))
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apartments/a1/alerts?status=BOGUS", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 for bogus filter", w.Code)
	}
}
