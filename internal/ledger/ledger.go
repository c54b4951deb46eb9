// Package ledger is the persisted record of already-processed videos.
// A video present here is never re-enqueued by discovery.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"tubescribe/internal/store"
)

// ErrDuplicateRecord is returned when a video is recorded twice. Callers
// are expected to check Has first; hitting this error means a
// double-processing bug upstream.
var ErrDuplicateRecord = errors.New("video already recorded in ledger")

const lockStaleAfter = 5 * time.Minute

// Record holds metadata about one processed video.
type Record struct {
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	ProcessedAt string `json:"processed_at"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
}

type ledgerFile struct {
	ProcessedVideos map[string]Record `json:"processed_videos"`
}

// Ledger keeps the processed-video mapping in memory for O(1) lookups
// and persists every addition with the atomic-rewrite discipline.
type Ledger struct {
	path    string
	records map[string]Record
}

// Open loads the ledger at path. A missing file yields an empty ledger
// (first run); an unreadable or malformed file is an error.
func Open(path string) (*Ledger, error) {
	var f ledgerFile
	err := store.ReadJSON(path, &f)
	if err != nil && !store.IsNotExist(err) {
		return nil, fmt.Errorf("ledger state: %w", err)
	}
	if f.ProcessedVideos == nil {
		f.ProcessedVideos = map[string]Record{}
	}
	return &Ledger{path: path, records: f.ProcessedVideos}, nil
}

// Has reports whether the video has already been processed.
func (l *Ledger) Has(videoID string) bool {
	_, ok := l.records[videoID]
	return ok
}

// Add records a processed video. Returns ErrDuplicateRecord if the
// video is already present; the existing record is never overwritten.
func (l *Ledger) Add(videoID string, rec Record) error {
	if videoID == "" {
		return fmt.Errorf("ledger add: empty video id")
	}
	if l.Has(videoID) {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, videoID)
	}
	if rec.ProcessedAt == "" {
		rec.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
	}

	lock, err := store.Acquire(l.path+".lock", lockStaleAfter)
	if err != nil {
		return fmt.Errorf("locking ledger: %w", err)
	}
	defer lock.Release()

	l.records[videoID] = rec
	if err := store.WriteJSON(l.path, ledgerFile{ProcessedVideos: l.records}); err != nil {
		delete(l.records, videoID)
		return err
	}
	return nil
}

// Len returns the number of recorded videos.
func (l *Ledger) Len() int {
	return len(l.records)
}

// All returns every record keyed by video id, in stable id order.
func (l *Ledger) All() []string {
	ids := make([]string, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the record for a video id, if present.
func (l *Ledger) Get(videoID string) (Record, bool) {
	rec, ok := l.records[videoID]
	return rec, ok
}
