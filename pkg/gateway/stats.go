package gateway

import (
	"context"
	"sync"
	"time"

	"fetchbot/pkg/bus"
)

// batchStats aggregates bus events into the counters served by /readyz.
type batchStats struct {
	mu     sync.RWMutex
	counts statsSnapshot
}

// consume applies events until the channel closes or ctx ends.
func (s *batchStats) consume(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.apply(event)
		}
	}
}

func (s *batchStats) apply(event bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case bus.EventBatchStarted:
		s.counts.BatchesStarted++
	case bus.EventBatchCompleted:
		s.counts.BatchesCompleted++
	case bus.EventBatchCanceled:
		s.counts.BatchesCanceled++
	case bus.EventItemFinished:
		if event.Error == "" {
			s.counts.FilesDownloaded++
		} else {
			s.counts.FilesFailed++
		}
	case bus.EventIngestFailed:
		s.counts.IngestFailures++
	default:
		return
	}

	s.counts.LastEventAt = event.At.UTC().Format(time.RFC3339)
}

// snapshot copies the counters for serialization.
func (s *batchStats) snapshot() statsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counts
}

type statsSnapshot struct {
	BatchesStarted   int64  `json:"batches_started"`
	BatchesCompleted int64  `json:"batches_completed"`
	BatchesCanceled  int64  `json:"batches_canceled"`
	FilesDownloaded  int64  `json:"files_downloaded"`
	FilesFailed      int64  `json:"files_failed"`
	IngestFailures   int64  `json:"ingest_failures"`
	ActiveBatches    int    `json:"active_batches"`
	LastEventAt      string `json:"last_event_at,omitempty"`
}
