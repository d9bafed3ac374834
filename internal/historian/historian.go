// Package historian drains the session action queue from Redis into Postgres
// and marks sessions abandoned after a period of inactivity.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/crowdpick/internal/cache"
	"github.com/jason-s-yu/crowdpick/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// sessionEndAction is the action type logged when a session completes.
const sessionEndAction = "session_end"

// Sink persists batches of action records.
type Sink interface {
	InsertSessionActions(ctx context.Context, records []cache.SessionActionRecord) error
	MarkSessionAbandoned(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// Service batches action records popped from a Redis list and flushes them to a Sink.
type Service struct {
	client    *redis.Client
	queueName string
	sink      Sink
	log       logrus.FieldLogger

	batchSize  int
	flushDelay time.Duration
	inactivity time.Duration

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []cache.SessionActionRecord
}

// New builds a Service. client may be nil when records are fed through HandlePayload directly.
func New(client *redis.Client, queueName string, sink Sink, cfg config.HistorianConfig, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if queueName == "" {
		queueName = cache.DefaultQueueName
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Service{
		client:     client,
		queueName:  queueName,
		sink:       sink,
		log:        logger.WithField("component", "historian"),
		batchSize:  batchSize,
		flushDelay: cfg.FlushDelay,
		inactivity: cfg.Inactivity,
		batch:      make([]cache.SessionActionRecord, 0, batchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes whatever is still buffered.
func (s *Service) Run(ctx context.Context) error {
	if s.client == nil {
		return errors.New("historian: no redis client")
	}
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.readLoop(ctx) }()
	go func() { defer wg.Done(); s.flushLoop(ctx) }()
	go func() { defer wg.Done(); s.inactivityLoop(ctx) }()

	s.log.WithField("queue", s.queueName).Info("historian started")
	<-ctx.Done()
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("historian stopped")
	return nil
}

// readLoop pops with a short BLPop timeout so cancellation is noticed.
func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := s.client.BLPop(ctx, 3*time.Second, s.queueName).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.log.WithError(err).Error("BLPop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		if err := s.HandlePayload(ctx, res[1]); err != nil {
			s.log.WithError(err).Warn("dropping action record")
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	if s.flushDelay <= 0 {
		return
	}
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) {
	if s.inactivity <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SweepInactive(ctx, now)
		}
	}
}

// HandlePayload decodes one queued record, tracks its session's activity and
// buffers it, flushing when the batch is full.
func (s *Service) HandlePayload(ctx context.Context, payload string) error {
	var record cache.SessionActionRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return fmt.Errorf("invalid action record: %w", err)
	}
	if record.SessionID == uuid.Nil {
		return errors.New("action record has no session id")
	}

	if record.ActionType == sessionEndAction {
		s.lastActivity.Delete(record.SessionID)
	} else {
		s.lastActivity.Store(record.SessionID, time.Now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, record)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered batch to the sink and returns how many records were taken.
// On a sink error the records are dropped and logged; the queue is not replayed.
func (s *Service) Flush(ctx context.Context) int {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return 0
	}
	batchCopy := make([]cache.SessionActionRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertSessionActions(ctx, batchCopy); err != nil {
		s.log.WithError(err).WithField("count", len(batchCopy)).Error("failed to flush actions")
		return len(batchCopy)
	}
	s.log.WithField("count", len(batchCopy)).Debug("flushed actions")
	return len(batchCopy)
}

// Pending is the number of buffered records.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// SweepInactive marks every session idle longer than the inactivity threshold as
// abandoned and stops tracking it. It returns how many sessions were swept.
func (s *Service) SweepInactive(ctx context.Context, now time.Time) int {
	swept := 0
	s.lastActivity.Range(func(key, val interface{}) bool {
		sessionID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.inactivity {
			return true
		}
		changed, err := s.sink.MarkSessionAbandoned(ctx, sessionID)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Error("failed to mark session abandoned")
			return true
		}
		if changed {
			s.log.WithField("session_id", sessionID).Info("marked session abandoned due to inactivity")
		}
		s.lastActivity.Delete(sessionID)
		swept++
		return true
	})
	return swept
}
