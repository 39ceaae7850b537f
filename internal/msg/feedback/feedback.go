// Package feedback runs the acknowledgment scan loop: on a fixed period it
// fetches the single oldest unacknowledged talk record, marks it
// acknowledged, and pushes its text to the outbound dispatcher.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"talkbridge/internal/apperrors"
	"talkbridge/internal/model"
)

const defaultPollInterval = 5 * time.Minute

var (
	scanCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanner_cycles_total",
		Help: "The total number of scan cycles run",
	})
	scanCyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanner_cycles_skipped_total",
		Help: "The total number of ticks dropped because a cycle was in flight",
	})
	scanCyclesEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanner_cycles_empty_total",
		Help: "The total number of cycles that found no unacknowledged record",
	})
	talksDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanner_talks_delivered_total",
		Help: "The total number of talks pushed to the chat sink",
	})
	dispatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanner_dispatch_errors_total",
		Help: "The total number of failed pushes after acknowledgment",
	})
)

type RecordStore interface {
	SelectOldestUnacknowledged(ctx context.Context) (*model.TalkRecord, error)
	UpdateAsAcknowledged(ctx context.Context, recordID string) error
}

type Dispatcher interface {
	Push(ctx context.Context, text string) error
}

type Config struct {
	Name         string
	PollInterval time.Duration
}

// Scanner is the consumer half of the bridge. Cycles never overlap: a tick
// arriving while a cycle is in flight is dropped, not queued, so two cycles
// can never race on the same oldest record.
type Scanner struct {
	log        *zap.Logger
	cfg        Config
	store      RecordStore
	dispatcher Dispatcher

	busy       atomic.Bool
	lastScanAt atomic.Int64 // unix nanos, diagnostic only
}

func NewScanner(log *zap.Logger, cfg Config, store RecordStore, dispatcher Dispatcher) *Scanner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Scanner{
		log:        log,
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
	}
}

func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.log.Info("Feedback scanner started",
		zap.String("name", s.cfg.Name),
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Feedback scanner stopped", zap.String("name", s.cfg.Name))

			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil && !errors.Is(err, apperrors.ErrScanInFlight) {
				s.log.Error("Scan cycle failed", zap.Error(err))
			}
		}
	}
}

// Scan executes one query -> mark -> dispatch cycle. It returns
// ErrScanInFlight when another cycle holds the guard, and the dispatch
// error, if any, after the record is already acknowledged.
func (s *Scanner) Scan(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		scanCyclesSkipped.Inc()

		return apperrors.ErrScanInFlight
	}
	defer s.busy.Store(false)

	scanCycles.Inc()

	if last := s.lastScanAt.Load(); last != 0 {
		s.log.Debug("Scan cycle starting",
			zap.Time("last_scan_at", time.Unix(0, last)),
		)
	}
	defer s.lastScanAt.Store(time.Now().UnixNano())

	record, err := s.store.SelectOldestUnacknowledged(ctx)
	if errors.Is(err, apperrors.ErrNoPendingRecord) {
		scanCyclesEmpty.Inc()

		return nil
	}

	if err != nil {
		return fmt.Errorf("select oldest unacknowledged: %w", err)
	}

	// Acknowledge before pushing: a crash between the two drops the talk
	// instead of delivering it twice.
	if err := s.store.UpdateAsAcknowledged(ctx, record.ID); err != nil {
		return fmt.Errorf("mark acknowledged: %w", err)
	}

	if err := s.dispatcher.Push(ctx, record.Text); err != nil {
		dispatchErrors.Inc()
		s.log.Error("Failed to push talk, record stays acknowledged",
			zap.String("record_id", record.ID),
			zap.Error(err),
		)

		return err
	}

	talksDelivered.Inc()
	s.log.Info("Talk delivered",
		zap.String("record_id", record.ID),
	)

	return nil
}
