package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"metering-service/internal/models"
)

// ReportCache keeps computed reconciliation reports in Redis so repeated
// dashboard requests for the same period skip the full recalculation.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int, ttl time.Duration) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &ReportCache{client: client, ttl: ttl}, nil
}

func (c *ReportCache) Close() error {
	return c.client.Close()
}

func reportKey(apartmentID string, periodStart, periodEnd time.Time) string {
	return fmt.Sprintf("report:%s:%d:%d", apartmentID, periodStart.Unix(), periodEnd.Unix())
}

// Get returns the cached report for the period, or nil on a miss. Cache
// errors are returned so the caller can log and fall through to the
// reconciler.
func (c *ReportCache) Get(ctx context.Context, apartmentID string, periodStart, periodEnd time.Time) (*models.ReconciliationReport, error) {
	data, err := c.client.Get(ctx, reportKey(apartmentID, periodStart, periodEnd)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached report: %w", err)
	}

	var report models.ReconciliationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return &report, nil
}

// Set stores a report under its period key with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, report models.ReconciliationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	key := reportKey(report.ApartmentID, report.PeriodStart, report.PeriodEnd)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}
