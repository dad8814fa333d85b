package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"metering-service/internal/detector"
	"metering-service/internal/models"
)

type fakeStore struct {
	meters   map[string]models.Meter
	readings map[string][]models.MeterReading
}

func (s *fakeStore) AppendReading(_ context.Context, r models.MeterReading) error {
	s.readings[r.MeterID] = append(s.readings[r.MeterID], r)
	return nil
}

func (s *fakeStore) ReadingsSince(_ context.Context, meterID string, since time.Time) ([]models.MeterReading, error) {
	var out []models.MeterReading
	for _, r := range s.readings[meterID] {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) MeterByID(_ context.Context, id string) (*models.Meter, error) {
	m, ok := s.meters[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

type fakeCreator struct {
	requests []models.AlertRequest
	err      error
}

func (c *fakeCreator) Create(_ context.Context, req models.AlertRequest) (*models.LeakAlert, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.requests = append(c.requests, req)
	return &models.LeakAlert{ID: "stored", ApartmentID: req.ApartmentID}, nil
}

func testConsumer(store *fakeStore, creator *fakeCreator) *Consumer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Consumer{
		store:    store,
		detector: detector.New(detector.DefaultConfig()),
		creator:  creator,
		logger:   logger,
		lookback: 31 * 24 * time.Hour,
	}
}

func encode(t *testing.T, msg readingMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestProcess_BurstReadingCreatesAlert(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		meters: map[string]models.Meter{"m1": {ID: "m1", ApartmentID: "a1", Type: models.MeterWaterCold}},
		readings: map[string][]models.MeterReading{
			"m1": {
				{MeterID: "m1", Timestamp: t0, Value: 1000},
				{MeterID: "m1", Timestamp: t0.Add(time.Hour), Value: 1010},
			},
		},
	}
	creator := &fakeCreator{}
	c := testConsumer(store, creator)

	payload := encode(t, readingMessage{MeterID: "m1", Timestamp: t0.Add(2 * time.Hour), Value: 1620})
	if err := c.process(context.Background(), payload); err != nil {
		t.Fatalf("process: %v", err)
	}

	if got, want := len(store.readings["m1"]), 3; got != want {
		t.Fatalf("stored readings=%d want %d", got, want)
	}
	var defender *models.AlertRequest
	for i := range creator.requests {
		if creator.requests[i].Trigger == models.TriggerDefender {
			defender = &creator.requests[i]
		}
	}
	if defender == nil {
		t.Fatalf("no DEFENDER alert requested, got %+v", creator.requests)
	}
	if defender.ApartmentID != "a1" {
		t.Errorf("apartment=%s want a1", defender.ApartmentID)
	}
}

func TestProcess_UnknownMeterDropped(t *testing.T) {
	t.Parallel()

	store := &fakeStore{meters: map[string]models.Meter{}, readings: map[string][]models.MeterReading{}}
	creator := &fakeCreator{}
	c := testConsumer(store, creator)

	payload := encode(t, readingMessage{MeterID: "ghost", Timestamp: time.Now(), Value: 1})
	if err := c.process(context.Background(), payload); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(store.readings["ghost"]) != 0 {
		t.Fatal("reading stored for unknown meter")
	}
	if len(creator.requests) != 0 {
		t.Fatalf("alerts requested for unknown meter: %+v", creator.requests)
	}
}

func TestProcess_MalformedMessageDropped(t *testing.T) {
	t.Parallel()

	store := &fakeStore{meters: map[string]models.Meter{}, readings: map[string][]models.MeterReading{}}
	c := testConsumer(store, &fakeCreator{})

	if err := c.process(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("process should drop malformed input, got %v", err)
	}
}

type fakeReader struct {
	msgs      []kafkago.Message
	idx       int
	committed []int64
}

func (r *fakeReader) FetchMessage(context.Context) (kafkago.Message, error) {
	if r.idx >= len(r.msgs) {
		return kafkago.Message{}, context.Canceled
	}
	m := r.msgs[r.idx]
	r.idx++
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func burstFixture() (*fakeStore, []byte) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		meters: map[string]models.Meter{"m1": {ID: "m1", ApartmentID: "a1", Type: models.MeterWaterCold}},
		readings: map[string][]models.MeterReading{
			"m1": {
				{MeterID: "m1", Timestamp: t0, Value: 1000},
				{MeterID: "m1", Timestamp: t0.Add(time.Hour), Value: 1010},
			},
		},
	}
	payload, _ := json.Marshal(readingMessage{MeterID: "m1", Timestamp: t0.Add(2 * time.Hour), Value: 1620})
	return store, payload
}

func TestRun_CommitsProcessedMessages(t *testing.T) {
	t.Parallel()

	store, payload := burstFixture()
	c := testConsumer(store, &fakeCreator{})
	reader := &fakeReader{msgs: []kafkago.Message{
		{Offset: 7, Value: payload},
		{Offset: 8, Value: []byte("not json")}, // dropped, still committed
	}}
	c.reader = reader

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := len(reader.committed), 2; got != want {
		t.Fatalf("committed=%v want %d offsets", reader.committed, want)
	}
}

func TestRun_StopsWithoutCommittingOnFailure(t *testing.T) {
	t.Parallel()

	store, payload := burstFixture()
	c := testConsumer(store, &fakeCreator{err: errors.New("connection refused")})
	reader := &fakeReader{msgs: []kafkago.Message{
		{Offset: 7, Value: payload},
		{Offset: 8, Value: payload},
	}}
	c.reader = reader

	err := c.Run(context.Background())
	if err == nil {
		t.Fatal("Run returned nil after a processing failure")
	}
	// Committing a later offset would also commit the failed one, so
	// nothing at all may be committed: the restart must redeliver offset 7.
	if len(reader.committed) != 0 {
		t.Fatalf("committed=%v want none", reader.committed)
	}
	if reader.idx != 1 {
		t.Fatalf("fetched %d messages, want the loop to stop after the first", reader.idx)
	}
}

func TestProcess_PersistenceFailurePropagates(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		meters: map[string]models.Meter{"m1": {ID: "m1", ApartmentID: "a1", Type: models.MeterWaterCold}},
		readings: map[string][]models.MeterReading{
			"m1": {
				{MeterID: "m1", Timestamp: t0, Value: 1000},
				{MeterID: "m1", Timestamp: t0.Add(time.Hour), Value: 1010},
			},
		},
	}
	wantErr := errors.New("alert persistence failed: connection refused")
	c := testConsumer(store, &fakeCreator{err: wantErr})

	payload := encode(t, readingMessage{MeterID: "m1", Timestamp: t0.Add(2 * time.Hour), Value: 1620})
	if err := c.process(context.Background(), payload); !errors.Is(err, wantErr) {
		t.Fatalf("err=%v want %v", err, wantErr)
	}
}
