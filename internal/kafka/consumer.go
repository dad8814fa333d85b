// Package kafka ingests meter readings from the broker and drives leak
// detection per reading.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"metering-service/internal/detector"
	"metering-service/internal/metrics"
	"metering-service/internal/models"
)

// ReadingStore is the slice of the database the consumer needs.
type ReadingStore interface {
	AppendReading(ctx context.Context, r models.MeterReading) error
	ReadingsSince(ctx context.Context, meterID string, since time.Time) ([]models.MeterReading, error)
	MeterByID(ctx context.Context, id string) (*models.Meter, error)
}

// AlertCreator persists and routes alert requests.
type AlertCreator interface {
	Create(ctx context.Context, req models.AlertRequest) (*models.LeakAlert, error)
}

// readingMessage is the wire shape of one ingested reading.
type readingMessage struct {
	MeterID   string    `json:"meter_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// messageReader is the slice of kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the reading topic, appends readings and evaluates guards.
// Detection state is scoped per apartment, so messages are independent.
type Consumer struct {
	reader   messageReader
	store    ReadingStore
	detector *detector.Detector
	creator  AlertCreator
	logger   *logrus.Logger
	lookback time.Duration
}

// NewConsumer constructs a Consumer reading from the given brokers.
// lookback is how much reading history the guards get; it should cover the
// GUARDIAN trailing window.
func NewConsumer(brokers []string, topic, groupID string, store ReadingStore, det *detector.Detector, creator AlertCreator, lookback time.Duration, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:   reader,
		store:    store,
		detector: det,
		creator:  creator,
		logger:   logger,
		lookback: lookback,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Kafka consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.process(ctx, msg.Value); err != nil {
			// Stop without committing. Offset commits are watermarks:
			// committing any later message would also commit this one
			// and lose it for good. The restart resumes from the last
			// committed offset; alert creation is idempotent, so the
			// redelivery is safe.
			c.logger.Errorf("Failed to process reading at offset %d: %v", msg.Offset, err)
			return fmt.Errorf("processing reading at offset %d: %w", msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// process appends one reading and runs the guards over the meter's recent
// history. Malformed messages and unknown meters are dropped, not retried.
func (c *Consumer) process(ctx context.Context, payload []byte) error {
	var msg readingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.ReadingsRejected.WithLabelValues("malformed").Inc()
		c.logger.Errorf("Unmarshal reading failed: %v", err)
		return nil
	}
	if msg.MeterID == "" || msg.Timestamp.IsZero() {
		metrics.ReadingsRejected.WithLabelValues("incomplete").Inc()
		c.logger.Errorf("Invalid reading message: missing meter_id or timestamp")
		return nil
	}

	meter, err := c.store.MeterByID(ctx, msg.MeterID)
	if err != nil {
		return err
	}
	if meter == nil {
		metrics.ReadingsRejected.WithLabelValues("unknown_meter").Inc()
		c.logger.Warnf("Reading for unknown meter %s dropped", msg.MeterID)
		return nil
	}

	reading := models.MeterReading{MeterID: msg.MeterID, Timestamp: msg.Timestamp, Value: msg.Value}
	if err := c.store.AppendReading(ctx, reading); err != nil {
		return err
	}
	metrics.ReadingsIngested.Inc()

	history, err := c.store.ReadingsSince(ctx, msg.MeterID, msg.Timestamp.Add(-c.lookback))
	if err != nil {
		return err
	}

	start := time.Now()
	requests := c.detector.Evaluate(meter.ApartmentID, history)
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())

	for _, req := range requests {
		metrics.GuardTriggers.WithLabelValues(string(req.Trigger), string(req.Severity)).Inc()
		created, err := c.creator.Create(ctx, req)
		if err != nil {
			return err
		}
		if created != nil {
			metrics.AlertsCreated.WithLabelValues(string(req.Trigger)).Inc()
		} else {
			metrics.AlertsDeduplicated.Inc()
		}
	}
	return nil
}
