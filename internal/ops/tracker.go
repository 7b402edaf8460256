// Package ops tracks long-running operations for the admin surface.
package ops

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Kind names the operation class.
type Kind string

const (
	KindIndexing Kind = "indexing"
	KindSearch   Kind = "search"
	KindValidate Kind = "validate"
	KindBackup   Kind = "backup"
)

// Operation is a snapshot of one tracked operation.
type Operation struct {
	ID             string
	Kind           Kind
	Collection     string
	Status         Status
	StartTime      time.Time
	EndTime        time.Time
	TotalFiles     int
	ProcessedFiles int
	FailedFiles    int
	CurrentFile    string
	Error          string
}

// Tracker is the process-wide operation registry. Terminal entries are kept
// for the retention window and then swept.
type Tracker struct {
	mu        sync.RWMutex
	ops       map[string]*Operation
	retention time.Duration
	now       func() time.Time
}

// DefaultRetention is how long terminal operations stay queryable.
const DefaultRetention = 10 * time.Minute

// NewTracker creates a tracker with the given terminal-entry retention.
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{
		ops:       make(map[string]*Operation),
		retention: retention,
		now:       time.Now,
	}
}

// Start registers a new running operation and returns its id.
func (t *Tracker) Start(kind Kind, collection string, totalFiles int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(kind, collection, totalFiles)
}

// StartIfNotRunning registers a new running operation unless one of the same
// kind is already active for the collection. The check and the registration
// share one critical section, so concurrent callers cannot both start.
func (t *Tracker) StartIfNotRunning(kind Kind, collection string, totalFiles int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range t.ops {
		if op.Kind == kind && op.Collection == collection && op.Status == StatusRunning {
			return "", false
		}
	}
	return t.startLocked(kind, collection, totalFiles), true
}

func (t *Tracker) startLocked(kind Kind, collection string, totalFiles int) string {
	t.sweepLocked()
	id := uuid.NewString()
	t.ops[id] = &Operation{
		ID:         id,
		Kind:       kind,
		Collection: collection,
		Status:     StatusRunning,
		StartTime:  t.now(),
		TotalFiles: totalFiles,
	}
	return id
}

// Progress updates the running counters for an operation. Unknown ids and
// terminal operations are ignored.
func (t *Tracker) Progress(id string, processed, failed, total int, currentFile string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok || op.Status != StatusRunning {
		return
	}
	op.ProcessedFiles = processed
	op.FailedFiles = failed
	if total > 0 {
		op.TotalFiles = total
	}
	op.CurrentFile = currentFile
}

// Complete marks an operation finished.
func (t *Tracker) Complete(id string) {
	t.finish(id, StatusCompleted, "")
}

// Fail marks an operation failed with a reason.
func (t *Tracker) Fail(id string, reason string) {
	t.finish(id, StatusFailed, reason)
}

func (t *Tracker) finish(id string, status Status, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok || op.Status != StatusRunning {
		return
	}
	op.Status = status
	op.EndTime = t.now()
	op.Error = reason
	op.CurrentFile = ""
}

// Get returns a copy of the operation, or false if unknown or swept.
func (t *Tracker) Get(id string) (Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[id]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// List returns copies of all tracked operations, running first.
func (t *Tracker) List() []Operation {
	t.mu.Lock()
	t.sweepLocked()
	out := make([]Operation, 0, len(t.ops))
	for _, op := range t.ops {
		out = append(out, *op)
	}
	t.mu.Unlock()
	return out
}

// Running reports whether an operation of the given kind is active for the
// collection. The indexer uses it to enforce one indexing op per collection.
func (t *Tracker) Running(kind Kind, collection string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, op := range t.ops {
		if op.Kind == kind && op.Collection == collection && op.Status == StatusRunning {
			return true
		}
	}
	return false
}

// sweepLocked drops terminal entries older than the retention window.
func (t *Tracker) sweepLocked() {
	cutoff := t.now().Add(-t.retention)
	for id, op := range t.ops {
		if op.Status != StatusRunning && op.EndTime.Before(cutoff) {
			delete(t.ops, id)
		}
	}
}
