package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/ports"
)

type fakeOutbox struct {
	mu           sync.Mutex
	pending      []ports.OutboxRecord
	enqueued     []ports.OutboxEvent
	published    []uuid.UUID
	failed       []uuid.UUID
	deadLettered []uuid.UUID
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, event)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	claimed := append([]ports.OutboxRecord(nil), f.pending[:limit]...)
	f.pending = f.pending[limit:]
	for i := range claimed {
		token := claimToken
		until := claimUntil
		claimed[i].ClaimToken = &token
		claimed[i].ClaimUntil = &until
	}
	return claimed, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, outboxID uuid.UUID, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, outboxID)
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, outboxID uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, outboxID)
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered = append(f.deadLettered, outboxID)
	return nil
}

type publishedMessage struct {
	eventType    string
	partitionKey string
}

type fakePublisher struct {
	mu      sync.Mutex
	fail    map[string]error
	batches []publishedMessage
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[eventType]; err != nil {
		return err
	}
	f.batches = append(f.batches, publishedMessage{eventType: eventType, partitionKey: partitionKey})
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Observe(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[operation+"/"+outcome]++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOutboxWorkerPublishesAndMarks(t *testing.T) {
	t.Parallel()
	ok := ports.OutboxRecord{OutboxID: uuid.New(), EventType: ports.EventTypeUserRegistered, PartitionKey: "alice@example.com"}
	broken := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "broken", RetryCount: 0}
	exhausted := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "broken", RetryCount: 2}
	stale := ports.OutboxRecord{OutboxID: uuid.New(), EventType: ports.EventTypeUserRegistered, RetryCount: 3}

	outbox := &fakeOutbox{pending: []ports.OutboxRecord{ok, broken, exhausted, stale}}
	publisher := &fakePublisher{fail: map[string]error{"broken": errors.New("broker down")}}
	recorder := &countingRecorder{counts: map[string]int{}}
	worker := NewOutboxWorker(discardLogger(), outbox, publisher, recorder, OutboxWorkerConfig{MaxRetries: 3})

	res, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if res.Claimed != 4 || res.Published != 1 || res.Failed != 2 || res.DeadLettered != 2 {
		t.Fatalf("unexpected batch result %+v", res)
	}
	if len(outbox.published) != 1 || outbox.published[0] != ok.OutboxID {
		t.Fatalf("expected ok record published, got %v", outbox.published)
	}
	if len(outbox.failed) != 1 || outbox.failed[0] != broken.OutboxID {
		t.Fatalf("expected broken record failed, got %v", outbox.failed)
	}
	if len(outbox.deadLettered) != 2 {
		t.Fatalf("expected two dead-lettered records, got %v", outbox.deadLettered)
	}
	if publisher.batches[0].partitionKey != "alice@example.com" {
		t.Fatalf("expected partition key to be forwarded, got %q", publisher.batches[0].partitionKey)
	}
	if recorder.counts["outbox_publish/success"] != 1 || recorder.counts["outbox_publish/dead_lettered"] != 2 {
		t.Fatalf("unexpected metrics %v", recorder.counts)
	}
}

func TestOutboxWorkerRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	worker := NewOutboxWorker(discardLogger(), &fakeOutbox{}, &fakePublisher{}, nil, OutboxWorkerConfig{Interval: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := worker.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestOutboxNotificationSinkEnqueuesResetLink(t *testing.T) {
	t.Parallel()
	outbox := &fakeOutbox{}
	sink := NewOutboxNotificationSink(outbox, "https://messenger.example.com/reset?lang=en")

	if err := sink.SendPasswordResetLink(context.Background(), "alice@example.com", "tok.en+/="); err != nil {
		t.Fatalf("send reset link: %v", err)
	}
	if len(outbox.enqueued) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(outbox.enqueued))
	}
	event := outbox.enqueued[0]
	if event.EventType != ports.EventTypePasswordResetRequested || event.PartitionKey != "alice@example.com" {
		t.Fatalf("unexpected event %+v", event)
	}

	var payload passwordResetPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	link, err := url.Parse(payload.ResetURL)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if link.Query().Get("token") != "tok.en+/=" || link.Query().Get("lang") != "en" {
		t.Fatalf("unexpected link %q", payload.ResetURL)
	}
}

func TestKafkaPublisherTopicMapping(t *testing.T) {
	t.Parallel()
	if _, err := NewKafkaPublisher(nil, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, map[string]string{
		ports.EventTypePasswordResetRequested: "auth.notifications",
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()
	if got := p.TopicFor(ports.EventTypePasswordResetRequested); got != "auth.notifications" {
		t.Fatalf("expected mapped topic, got %q", got)
	}
	if got := p.TopicFor(ports.EventTypeUserRegistered); got != ports.EventTypeUserRegistered {
		t.Fatalf("expected event type as topic, got %q", got)
	}
}
