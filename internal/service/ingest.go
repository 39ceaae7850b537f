package service

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"talkbridge/internal/model"
)

var (
	talksAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_talks_appended_total",
		Help: "The total number of talk records appended to the store",
	})
	eventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_skipped_total",
		Help: "The total number of webhook events skipped as non-text",
	})
	eventsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_events_deduped_total",
		Help: "The total number of redelivered webhook events dropped",
	})
	appendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_append_errors_total",
		Help: "The total number of failed store appends",
	})
)

type IngestStore interface {
	InsertRecord(ctx context.Context, text string) (string, error)
}

type EventDeduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
}

// IngestResult is the per-event outcome of one webhook batch. Skipped events
// (non-text, redelivered) are not failures.
type IngestResult struct {
	Index    int
	RecordID string
	Skipped  bool
	Err      error
}

// IngestService appends inbound text messages to the record store, seeding
// them unacknowledged. Events in one batch are processed concurrently and
// independently: one failing append never aborts its siblings.
type IngestService struct {
	log   *zap.Logger
	store IngestStore
	dedup EventDeduper // nil when redis is disabled
}

func NewIngestService(log *zap.Logger, store IngestStore, dedup EventDeduper) *IngestService {
	return &IngestService{
		log:   log,
		store: store,
		dedup: dedup,
	}
}

func (s *IngestService) ProcessBatch(ctx context.Context, events []model.WebhookEvent) []IngestResult {
	results := make([]IngestResult, len(events))

	var wg sync.WaitGroup

	for i := range events {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i] = s.processEvent(ctx, i, events[i])
		}(i)
	}

	wg.Wait()

	return results
}

func (s *IngestService) processEvent(ctx context.Context, index int, event model.WebhookEvent) IngestResult {
	if !event.IsText() {
		eventsSkipped.Inc()

		return IngestResult{Index: index, Skipped: true}
	}

	if s.dedup != nil && event.WebhookEventID != "" {
		fresh, err := s.dedup.Claim(ctx, event.WebhookEventID)
		if err != nil {
			// Dedup is best-effort; a redis hiccup must not drop the message.
			s.log.Warn("Failed to claim webhook event, appending anyway",
				zap.String("event_id", event.WebhookEventID),
				zap.Error(err),
			)
		} else if !fresh {
			eventsDeduped.Inc()
			s.log.Info("Skipping redelivered webhook event",
				zap.String("event_id", event.WebhookEventID),
			)

			return IngestResult{Index: index, Skipped: true}
		}
	}

	recordID, err := s.store.InsertRecord(ctx, event.Message.Text)
	if err != nil {
		appendErrors.Inc()
		s.log.Error("Failed to append talk record",
			zap.String("event_id", event.WebhookEventID),
			zap.Error(err),
		)

		return IngestResult{Index: index, Err: err}
	}

	talksAppended.Inc()
	s.log.Info("Talk record appended",
		zap.String("record_id", recordID),
	)

	return IngestResult{Index: index, RecordID: recordID}
}
