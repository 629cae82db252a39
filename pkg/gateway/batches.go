package gateway

import (
	"context"
	"slices"
	"sync"
	"time"
)

// batchTracker records queued and running batches per chat.
//
// Batches for one chat run strictly in submission order: only the head of a
// chat's queue may run, and releasing the head hands over to the next one.
// Different chats never wait on each other.
type batchTracker struct {
	mu    sync.Mutex
	chats map[string][]*trackedBatch
}

type trackedBatch struct {
	id        string
	total     int
	done      int
	succeeded int
	failed    int
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	turn      chan struct{}
}

// batchProgress is a point-in-time copy of one tracked batch.
type batchProgress struct {
	ID        string
	Total     int
	Done      int
	Succeeded int
	Failed    int
	Running   bool
	StartedAt time.Time
}

func newBatchTracker() *batchTracker {
	return &batchTracker{chats: make(map[string][]*trackedBatch)}
}

// add queues a batch for chatID and returns a release func that drops it and
// wakes the next batch. release must be called exactly once.
func (t *batchTracker) add(chatID string, id string, total int, cancel context.CancelFunc) (*trackedBatch, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := &trackedBatch{id: id, total: total, cancel: cancel, turn: make(chan struct{})}
	queue := append(t.chats[chatID], batch)
	t.chats[chatID] = queue
	if len(queue) == 1 {
		close(batch.turn)
	}

	release := func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		queue := t.chats[chatID]
		index := slices.Index(queue, batch)
		if index < 0 {
			return
		}

		queue = slices.Delete(queue, index, index+1)
		if len(queue) == 0 {
			delete(t.chats, chatID)
			return
		}

		t.chats[chatID] = queue
		if index == 0 {
			close(queue[0].turn)
		}
	}

	return batch, release
}

// acquire blocks until batch reaches the head of its chat queue or ctx ends.
func (t *batchTracker) acquire(ctx context.Context, batch *trackedBatch) bool {
	select {
	case <-batch.turn:
	case <-ctx.Done():
		return false
	}

	t.mu.Lock()
	batch.running = true
	batch.startedAt = time.Now().UTC()
	t.mu.Unlock()

	return true
}

// record folds one finished item into the batch progress.
func (t *batchTracker) record(batch *trackedBatch, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch.done++
	if ok {
		batch.succeeded++
	} else {
		batch.failed++
	}
}

// cancel stops every queued or running batch for chatID and returns how many were signaled.
func (t *batchTracker) cancel(chatID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.chats[chatID]
	for _, batch := range queue {
		batch.cancel()
	}

	return len(queue)
}

// snapshot returns the batches tracked for chatID in submission order.
func (t *batchTracker) snapshot(chatID string) []batchProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue, ok := t.chats[chatID]
	if !ok {
		return nil
	}

	progress := make([]batchProgress, 0, len(queue))
	for _, batch := range queue {
		progress = append(progress, batchProgress{
			ID:        batch.id,
			Total:     batch.total,
			Done:      batch.done,
			Succeeded: batch.succeeded,
			Failed:    batch.failed,
			Running:   batch.running,
			StartedAt: batch.startedAt,
		})
	}

	return progress
}

// active returns the number of tracked batches across all chats.
func (t *batchTracker) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, queue := range t.chats {
		count += len(queue)
	}

	return count
}
