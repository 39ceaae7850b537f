package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"talkbridge/internal/apperrors"
	"talkbridge/internal/model"
	"talkbridge/internal/service"
)

type fakeStore struct {
	mu      sync.Mutex
	records []*model.TalkRecord

	selectErr error
	updateErr error

	selectStarted chan struct{}
	selectRelease chan struct{}
}

func (f *fakeStore) InsertRecord(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := fmt.Sprintf("rec-%d", len(f.records)+1)
	f.records = append(f.records, &model.TalkRecord{
		ID:        id,
		Text:      text,
		CreatedAt: time.Now().Add(time.Duration(len(f.records)) * time.Millisecond),
	})

	return id, nil
}

func (f *fakeStore) SelectOldestUnacknowledged(ctx context.Context) (*model.TalkRecord, error) {
	if f.selectStarted != nil {
		f.selectStarted <- struct{}{}
		<-f.selectRelease
	}

	if f.selectErr != nil {
		return nil, f.selectErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var oldest *model.TalkRecord

	for _, r := range f.records {
		if r.Acknowledged || r.Text == "" {
			continue
		}

		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}

	if oldest == nil {
		return nil, apperrors.ErrNoPendingRecord
	}

	copied := *oldest

	return &copied, nil
}

func (f *fakeStore) UpdateAsAcknowledged(ctx context.Context, recordID string) error {
	if f.updateErr != nil {
		return f.updateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.records {
		if r.ID == recordID {
			r.Acknowledged = true
		}
	}

	return nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	pushed []string
	err    error
}

func (f *fakeDispatcher) Push(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.pushed = append(f.pushed, text)

	return nil
}

func (f *fakeDispatcher) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.pushed...)
}

func newTestScanner(store RecordStore, dispatcher Dispatcher) *Scanner {
	return NewScanner(zap.NewNop(), Config{Name: "test-scanner", PollInterval: time.Minute}, store, dispatcher)
}

func TestScanDeliversOldestFirst(t *testing.T) {
	base := time.Now()

	store := &fakeStore{
		records: []*model.TalkRecord{
			{ID: "b", Text: "second", CreatedAt: base.Add(time.Minute)},
			{ID: "a", Text: "first", CreatedAt: base},
			{ID: "c", Text: "third", CreatedAt: base.Add(2 * time.Minute)},
		},
	}
	dispatcher := &fakeDispatcher{}
	scanner := newTestScanner(store, dispatcher)

	for i := 0; i < 3; i++ {
		if err := scanner.Scan(context.Background()); err != nil {
			t.Fatalf("scan %d: unexpected error: %v", i, err)
		}
	}

	got := dispatcher.texts()
	want := []string{"first", "second", "third"}

	if len(got) != len(want) {
		t.Fatalf("pushed %d talks, want %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("push %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScanEmptyStoreIsNoop(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	scanner := newTestScanner(store, dispatcher)

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("unexpected error on empty store: %v", err)
	}

	if len(dispatcher.texts()) != 0 {
		t.Fatalf("pushed %d talks, want 0", len(dispatcher.texts()))
	}
}

func TestScanSelectErrorIsReturned(t *testing.T) {
	store := &fakeStore{selectErr: apperrors.ErrStoreRead}
	scanner := newTestScanner(store, &fakeDispatcher{})

	err := scanner.Scan(context.Background())
	if !errors.Is(err, apperrors.ErrStoreRead) {
		t.Fatalf("got %v, want ErrStoreRead", err)
	}
}

func TestScanDispatchFailureLeavesRecordAcknowledged(t *testing.T) {
	store := &fakeStore{
		records: []*model.TalkRecord{
			{ID: "a", Text: "hello", CreatedAt: time.Now()},
		},
	}
	dispatcher := &fakeDispatcher{err: apperrors.ErrSinkDispatch}
	scanner := newTestScanner(store, dispatcher)

	err := scanner.Scan(context.Background())
	if !errors.Is(err, apperrors.ErrSinkDispatch) {
		t.Fatalf("got %v, want ErrSinkDispatch", err)
	}

	if !store.records[0].Acknowledged {
		t.Fatal("record must stay acknowledged after a failed push")
	}

	// The failed talk is gone for good: the next cycle finds nothing.
	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("second scan: unexpected error: %v", err)
	}

	if len(dispatcher.texts()) != 0 {
		t.Fatal("failed talk must not be retried")
	}
}

func TestScanMarkFailureSkipsDispatch(t *testing.T) {
	store := &fakeStore{
		records: []*model.TalkRecord{
			{ID: "a", Text: "hello", CreatedAt: time.Now()},
		},
		updateErr: apperrors.ErrStoreWrite,
	}
	dispatcher := &fakeDispatcher{}
	scanner := newTestScanner(store, dispatcher)

	err := scanner.Scan(context.Background())
	if !errors.Is(err, apperrors.ErrStoreWrite) {
		t.Fatalf("got %v, want ErrStoreWrite", err)
	}

	if len(dispatcher.texts()) != 0 {
		t.Fatal("dispatch must not run when acknowledgment fails")
	}
}

func TestIngestThenScanDelivers(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	scanner := newTestScanner(store, dispatcher)
	ingest := service.NewIngestService(zap.NewNop(), store, nil)

	results := ingest.ProcessBatch(context.Background(), []model.WebhookEvent{
		{
			Type: model.EventTypeMessage,
			Message: &model.EventMessage{
				Type: model.MessageTypeText,
				Text: "hello",
			},
		},
	})

	if results[0].Err != nil || results[0].Skipped {
		t.Fatalf("ingest: %+v", results[0])
	}

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	if got := dispatcher.texts(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("pushed %v, want [hello]", got)
	}

	if !store.records[0].Acknowledged {
		t.Fatal("delivered record must be acknowledged")
	}

	// Nothing left: the second cycle performs no action.
	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if len(dispatcher.texts()) != 1 {
		t.Fatal("second cycle must not dispatch again")
	}
}

func TestScanOverlappingCycleIsDropped(t *testing.T) {
	store := &fakeStore{
		records: []*model.TalkRecord{
			{ID: "a", Text: "hello", CreatedAt: time.Now()},
		},
		selectStarted: make(chan struct{}),
		selectRelease: make(chan struct{}),
	}
	dispatcher := &fakeDispatcher{}
	scanner := newTestScanner(store, dispatcher)

	firstDone := make(chan error, 1)

	go func() {
		firstDone <- scanner.Scan(context.Background())
	}()

	// Wait until the first cycle is inside the store call, then tick again.
	<-store.selectStarted

	if err := scanner.Scan(context.Background()); !errors.Is(err, apperrors.ErrScanInFlight) {
		t.Fatalf("overlapping scan: got %v, want ErrScanInFlight", err)
	}

	close(store.selectRelease)

	if err := <-firstDone; err != nil {
		t.Fatalf("first scan: unexpected error: %v", err)
	}

	if got := dispatcher.texts(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("pushed %v, want exactly one %q", got, "hello")
	}
}
