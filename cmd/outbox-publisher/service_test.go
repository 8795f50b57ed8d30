package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/atelierhq/atelier-backend/pkg/config"
	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	"github.com/atelierhq/atelier-backend/pkg/logger"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	markErr   error
}

func (r *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if len(r.events) > limit {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func (r *fakeRepo) MarkPublished(id uuid.UUID) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	return nil
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	errFor   map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if err, ok := p.errFor[msg.Attributes["event_id"]]; ok {
		return fakeResult{err: err}
	}
	return fakeResult{}
}

func testEvent(t *testing.T, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateTask,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	eventA := testEvent(t, enums.EventNewTask)
	eventB := testEvent(t, enums.EventQuoteSent)
	repo := &fakeRepo{events: []models.OutboxEvent{eventA, eventB}}
	pub := &fakePublisher{}

	svc := newTestService(t, repo, pub)

	processed, err := svc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed got %d", processed)
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published got %d", len(repo.published))
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 messages got %d", len(pub.messages))
	}
	if got := pub.messages[0].Attributes["event_type"]; got != string(enums.EventNewTask) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
	if pub.messages[0].Attributes["event_id"] == "" {
		t.Fatal("missing event_id attribute")
	}
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	bad := testEvent(t, enums.EventNewTask)
	good := testEvent(t, enums.EventStatusUpdate)

	var badEnvelope outbox.PayloadEnvelope
	if err := json.Unmarshal(bad.Payload, &badEnvelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	repo := &fakeRepo{events: []models.OutboxEvent{bad, good}}
	pub := &fakePublisher{errFor: map[string]error{badEnvelope.EventID: errors.New("topic unavailable")}}

	svc := newTestService(t, repo, pub)

	processed, err := svc.ProcessBatch(context.Background())
	if processed != 2 {
		t.Fatalf("expected 2 processed got %d", processed)
	}
	if err == nil {
		t.Fatal("expected aggregated batch error")
	}
	if len(repo.failed) != 1 || repo.failed[0] != bad.ID {
		t.Fatalf("expected bad event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != good.ID {
		t.Fatalf("expected good event published, got %v", repo.published)
	}
}

func TestProcessBatchMalformedEnvelope(t *testing.T) {
	event := testEvent(t, enums.EventNewTask)
	event.Payload = json.RawMessage(`{not json`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}

	svc := newTestService(t, repo, pub)

	if _, err := svc.ProcessBatch(context.Background()); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected event marked failed, got %v", repo.failed)
	}
	if len(pub.messages) != 0 {
		t.Fatal("malformed event must not be published")
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})
	processed, err := svc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected 0 processed got %d", processed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}
