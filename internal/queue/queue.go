// Package queue manages the backlog of videos awaiting processing,
// persisted as a single JSON file rewritten atomically on every mutation.
package queue

import (
	"fmt"
	"sort"
	"time"

	"tubescribe/internal/store"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
)

// Entries completing successfully are removed from the queue rather than
// kept with a done status; the ledger is the record of completed work.

const lockStaleAfter = 5 * time.Minute

// Entry is one queued video.
type Entry struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title,omitempty"`
	Channel     string `json:"channel,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Lang        string `json:"lang,omitempty"`
	Status      string `json:"status"`
	EnqueuedAt  string `json:"enqueued_at"`
	StartedAt   string `json:"started_at,omitempty"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
}

type backlogFile struct {
	Queue           []Entry `json:"queue"`
	LastProcessedAt string  `json:"last_processed_at,omitempty"`
}

// ProcessedChecker reports whether a video has already been processed.
// The ledger satisfies this.
type ProcessedChecker interface {
	Has(videoID string) bool
}

// Backlog is a handle to the persisted queue file. Every mutation takes a
// scoped lock on the file, reads the whole queue, applies the change in
// memory, and writes the whole file back atomically.
type Backlog struct {
	path         string
	retryCeiling int
	processed    ProcessedChecker
	now          func() time.Time
}

// New creates a Backlog handle. retryCeiling is the number of failed
// attempts after which an entry is parked as failed. processed may be nil
// when no ledger-based dedup is wanted (tests, inspection).
func New(path string, retryCeiling int, processed ProcessedChecker) *Backlog {
	return &Backlog{
		path:         path,
		retryCeiling: retryCeiling,
		processed:    processed,
		now:          time.Now,
	}
}

// Enqueue appends a pending entry for the video. It is a silent no-op
// when the video is already queued (any status) or already recorded as
// processed. Reports whether the entry was added.
func (b *Backlog) Enqueue(e Entry) (bool, error) {
	if e.VideoID == "" {
		return false, fmt.Errorf("enqueue: empty video id")
	}
	if b.processed != nil && b.processed.Has(e.VideoID) {
		return false, nil
	}

	added := false
	err := b.mutate(func(f *backlogFile) error {
		for i := range f.Queue {
			if f.Queue[i].VideoID == e.VideoID {
				return nil
			}
		}
		e.Status = StatusPending
		e.EnqueuedAt = b.now().UTC().Format(time.RFC3339)
		e.StartedAt = ""
		e.Attempts = 0
		e.LastError = ""
		f.Queue = append(f.Queue, e)
		added = true
		return nil
	})
	return added, err
}

// DequeueBatch returns up to n pending entries in enqueue order (oldest
// first) and marks them processing. The processing marks are persisted
// before the entries are returned, so a crash mid-batch re-selects
// nothing until reconciliation moves the stale entries back to pending.
func (b *Backlog) DequeueBatch(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	var batch []Entry
	err := b.mutate(func(f *backlogFile) error {
		idx := make([]int, 0, n)
		for i := range f.Queue {
			if f.Queue[i].Status == StatusPending {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, c int) bool {
			return f.Queue[idx[a]].EnqueuedAt < f.Queue[idx[c]].EnqueuedAt
		})
		if len(idx) > n {
			idx = idx[:n]
		}

		started := b.now().UTC().Format(time.RFC3339)
		for _, i := range idx {
			f.Queue[i].Status = StatusProcessing
			f.Queue[i].StartedAt = started
			batch = append(batch, f.Queue[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// MarkDone removes the entry from the queue entirely. Removing an id
// that is no longer queued is a no-op.
func (b *Backlog) MarkDone(videoID string) error {
	return b.mutate(func(f *backlogFile) error {
		for i := range f.Queue {
			if f.Queue[i].VideoID == videoID {
				f.Queue = append(f.Queue[:i], f.Queue[i+1:]...)
				break
			}
		}
		f.LastProcessedAt = b.now().UTC().Format(time.RFC3339)
		return nil
	})
}

// MarkFailed records a failed attempt. The entry goes back to pending
// for a later batch until attempts exceed the retry ceiling, at which
// point it is parked as failed until RetryFailed re-admits it.
func (b *Backlog) MarkFailed(videoID, msg string) error {
	return b.mutate(func(f *backlogFile) error {
		for i := range f.Queue {
			if f.Queue[i].VideoID != videoID {
				continue
			}
			f.Queue[i].Attempts++
			f.Queue[i].LastError = msg
			f.Queue[i].StartedAt = ""
			if f.Queue[i].Attempts > b.retryCeiling {
				f.Queue[i].Status = StatusFailed
			} else {
				f.Queue[i].Status = StatusPending
			}
			return nil
		}
		return fmt.Errorf("mark failed: %s not in queue", videoID)
	})
}

// RetryFailed resets every failed entry to pending with a cleared
// attempt count. Returns the number of entries re-admitted.
func (b *Backlog) RetryFailed() (int, error) {
	count := 0
	err := b.mutate(func(f *backlogFile) error {
		for i := range f.Queue {
			if f.Queue[i].Status == StatusFailed {
				f.Queue[i].Status = StatusPending
				f.Queue[i].Attempts = 0
				f.Queue[i].LastError = ""
				count++
			}
		}
		return nil
	})
	return count, err
}

// ReconcileStale returns processing entries older than threshold to
// pending. Run at startup to repair entries orphaned by a crashed run.
func (b *Backlog) ReconcileStale(threshold time.Duration) (int, error) {
	count := 0
	err := b.mutate(func(f *backlogFile) error {
		for i := range f.Queue {
			if f.Queue[i].Status != StatusProcessing {
				continue
			}
			started, err := time.Parse(time.RFC3339, f.Queue[i].StartedAt)
			if err == nil && b.now().Sub(started) < threshold {
				continue
			}
			f.Queue[i].Status = StatusPending
			f.Queue[i].StartedAt = ""
			count++
		}
		return nil
	})
	return count, err
}

// List returns a fresh read of the persisted queue. Read-only.
func (b *Backlog) List() ([]Entry, error) {
	f, err := b.load()
	if err != nil {
		return nil, err
	}
	return f.Queue, nil
}

func (b *Backlog) load() (*backlogFile, error) {
	var f backlogFile
	err := store.ReadJSON(b.path, &f)
	if err != nil && !store.IsNotExist(err) {
		// Exists but unreadable: never fabricate an empty queue.
		return nil, fmt.Errorf("backlog state: %w", err)
	}
	return &f, nil
}

func (b *Backlog) mutate(fn func(*backlogFile) error) error {
	lock, err := store.Acquire(b.path+".lock", lockStaleAfter)
	if err != nil {
		return fmt.Errorf("locking backlog: %w", err)
	}
	defer lock.Release()

	f, err := b.load()
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return store.WriteJSON(b.path, f)
}
