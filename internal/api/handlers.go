package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"metering-service/internal/billing"
	"metering-service/internal/metrics"
	"metering-service/internal/models"
)

// Handler serves the operator API.
type Handler struct {
	alerts     AlertService
	reconciler Reconciler
	reports    ReportStore
	cache      ReportCache
	logger     *logrus.Logger
	staleAfter time.Duration
}

// NewHandler constructs a Handler. cache may be nil.
func NewHandler(alerts AlertService, reconciler Reconciler, reports ReportStore, cache ReportCache, staleAfter time.Duration, logger *logrus.Logger) *Handler {
	return &Handler{
		alerts:     alerts,
		reconciler: reconciler,
		reports:    reports,
		cache:      cache,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// ListAlerts returns an apartment's alerts, optionally filtered by status.
func (h *Handler) ListAlerts(c *gin.Context) {
	status := models.AlertStatus(c.Query("status"))
	switch status {
	case "", models.StatusActive, models.StatusResolved:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	list, err := h.alerts.ListByApartment(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		h.logger.Errorf("List alerts failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list})
}

// StaleAlerts returns ACTIVE alerts older than older_than (default from
// config). The external escalation scheduler polls this endpoint.
func (h *Handler) StaleAlerts(c *gin.Context) {
	olderThan := h.staleAfter
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid older_than duration"})
			return
		}
		olderThan = d
	}

	list, err := h.alerts.StaleActive(c.Request.Context(), olderThan)
	if err != nil {
		h.logger.Errorf("Stale alert query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list})
}

// ResolveAlert marks an alert RESOLVED.
func (h *Handler) ResolveAlert(c *gin.Context) {
	if err := h.alerts.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Errorf("Resolve alert failed: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// Reconcile computes (or returns the cached) reconciliation report for an
// apartment and period. A valid zero report and a failed computation are
// distinct: the first is 200, the second an error status, so dashboards
// never show zeros for failures.
func (h *Handler) Reconcile(c *gin.Context) {
	apartmentID := c.Param("id")
	periodStart, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start, want RFC3339"})
		return
	}
	periodEnd, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end, want RFC3339"})
		return
	}

	ctx := c.Request.Context()
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, apartmentID, periodStart, periodEnd)
		if err != nil {
			h.logger.Warnf("Report cache read failed: %v", err)
		} else if cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	// Reports are immutable once computed: a stored one is the durable
	// fast path, with or without Redis in front.
	stored, err := h.reports.ReportByPeriod(ctx, apartmentID, periodStart, periodEnd)
	if err != nil {
		h.logger.Warnf("Stored report lookup failed, recomputing: %v", err)
	} else if stored != nil {
		if h.cache != nil {
			if err := h.cache.Set(ctx, *stored); err != nil {
				h.logger.Warnf("Report cache write failed: %v", err)
			}
		}
		c.JSON(http.StatusOK, stored)
		return
	}

	start := time.Now()
	report, err := h.reconciler.Calculate(ctx, apartmentID, periodStart, periodEnd)
	metrics.ReconciliationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrApartmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, billing.ErrNoTariff):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.Errorf("Reconciliation failed for apartment %s: %v", apartmentID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	if err := h.reports.SaveReport(ctx, *report); err != nil {
		h.logger.Errorf("Persisting report %s failed: %v", report.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, *report); err != nil {
			h.logger.Warnf("Report cache write failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, report)
}
