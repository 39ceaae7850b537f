package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"talkbridge/internal/apperrors"
	"talkbridge/internal/model"
)

type fakeIngestStore struct {
	mu       sync.Mutex
	inserted []string
	failOn   string
}

func (f *fakeIngestStore) InsertRecord(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if text == f.failOn {
		return "", apperrors.ErrStoreWrite
	}

	f.inserted = append(f.inserted, text)

	return fmt.Sprintf("rec-%d", len(f.inserted)), nil
}

func (f *fakeIngestStore) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.inserted...)
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, f.err
	}

	if f.seen[eventID] {
		return false, nil
	}

	if f.seen == nil {
		f.seen = make(map[string]bool)
	}

	f.seen[eventID] = true

	return true, nil
}

func textEvent(id, text string) model.WebhookEvent {
	return model.WebhookEvent{
		Type:           model.EventTypeMessage,
		WebhookEventID: id,
		Message: &model.EventMessage{
			ID:   id,
			Type: model.MessageTypeText,
			Text: text,
		},
	}
}

func TestProcessBatchAppendsTextEvents(t *testing.T) {
	store := &fakeIngestStore{}
	svc := NewIngestService(zap.NewNop(), store, nil)

	results := svc.ProcessBatch(context.Background(), []model.WebhookEvent{
		textEvent("evt-1", "ping"),
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	if results[0].Err != nil || results[0].Skipped {
		t.Fatalf("unexpected result: %+v", results[0])
	}

	if results[0].RecordID == "" {
		t.Fatal("appended event must carry a record id")
	}

	if got := store.texts(); len(got) != 1 || got[0] != "ping" {
		t.Fatalf("inserted %v, want [ping]", got)
	}
}

func TestProcessBatchSkipsNonTextEvents(t *testing.T) {
	store := &fakeIngestStore{}
	svc := NewIngestService(zap.NewNop(), store, nil)

	events := []model.WebhookEvent{
		{Type: "follow"},
		{Type: model.EventTypeMessage, Message: &model.EventMessage{Type: "sticker"}},
		{Type: model.EventTypeMessage, Message: &model.EventMessage{Type: model.MessageTypeText, Text: ""}},
	}

	results := svc.ProcessBatch(context.Background(), events)

	for i, res := range results {
		if !res.Skipped || res.Err != nil {
			t.Errorf("event %d: got %+v, want skipped", i, res)
		}
	}

	if len(store.texts()) != 0 {
		t.Fatalf("inserted %v, want none", store.texts())
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	store := &fakeIngestStore{failOn: "broken"}
	svc := NewIngestService(zap.NewNop(), store, nil)

	results := svc.ProcessBatch(context.Background(), []model.WebhookEvent{
		textEvent("evt-1", "broken"),
		textEvent("evt-2", "fine"),
	})

	if !errors.Is(results[0].Err, apperrors.ErrStoreWrite) {
		t.Fatalf("event 0: got %v, want ErrStoreWrite", results[0].Err)
	}

	if results[1].Err != nil || results[1].Skipped {
		t.Fatalf("event 1 must succeed despite sibling failure: %+v", results[1])
	}

	if got := store.texts(); len(got) != 1 || got[0] != "fine" {
		t.Fatalf("inserted %v, want [fine]", got)
	}
}

func TestProcessBatchDropsRedeliveredEvents(t *testing.T) {
	store := &fakeIngestStore{}
	dedup := &fakeDeduper{}
	svc := NewIngestService(zap.NewNop(), store, dedup)

	first := svc.ProcessBatch(context.Background(), []model.WebhookEvent{
		textEvent("evt-1", "ping"),
	})
	second := svc.ProcessBatch(context.Background(), []model.WebhookEvent{
		textEvent("evt-1", "ping"),
	})

	if first[0].Skipped || first[0].Err != nil {
		t.Fatalf("first delivery: %+v", first[0])
	}

	if !second[0].Skipped {
		t.Fatalf("redelivery must be skipped: %+v", second[0])
	}

	if len(store.texts()) != 1 {
		t.Fatalf("inserted %d records, want 1", len(store.texts()))
	}
}

func TestProcessBatchAppendsWhenDedupFails(t *testing.T) {
	store := &fakeIngestStore{}
	dedup := &fakeDeduper{err: errors.New("connection refused")}
	svc := NewIngestService(zap.NewNop(), store, dedup)

	results := svc.ProcessBatch(context.Background(), []model.WebhookEvent{
		textEvent("evt-1", "ping"),
	})

	if results[0].Err != nil || results[0].Skipped {
		t.Fatalf("dedup outage must not drop the message: %+v", results[0])
	}

	if len(store.texts()) != 1 {
		t.Fatalf("inserted %d records, want 1", len(store.texts()))
	}
}
