// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// ProgressUpdate is one progress notification
type ProgressUpdate struct {
	Progress int    `json:"progress"` // percentage (0-100)
	Message  string `json:"message"`  // descriptive message
	Status   string `json:"status"`   // running, completed, failed
}

// ProgressTracker tracks one long-running task, typically a full
// structuring pipeline run
type ProgressTracker struct {
	TaskID      string
	Progress    int
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService manages all progress trackers
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService creates a progress service instance
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker creates a tracker, or returns the existing one for taskID.
// A finished tracker is replaced so a reused task id tracks the new run
// instead of reporting the previous outcome.
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		tracker.mutex.Lock()
		finished := tracker.Status == "completed" || tracker.Status == "failed"
		tracker.mutex.Unlock()
		if !finished {
			return tracker
		}
	}

	tracker := &ProgressTracker{
		TaskID:      taskID,
		Progress:    0,
		Message:     "Task initializing...",
		Status:      "running",
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker looks up a tracker
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// UpdateProgress advances the task progress. Progress never moves backward.
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()

	t.notifyLocked(ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	})
}

// Snapshot returns the current state for a one-shot status query
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}
}

// Complete marks the task finished. Calling it on an already finished
// tracker is a no-op.
func (t *ProgressTracker) Complete(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finishedLocked() {
		return
	}

	t.Progress = 100
	if message != "" {
		t.Message = message
	} else {
		t.Message = "Task completed"
	}
	t.Status = "completed"
	t.UpdateTime = time.Now()

	t.notifyLocked(ProgressUpdate{
		Progress: 100,
		Message:  t.Message,
		Status:   "completed",
	})

	close(t.Done)
}

// Fail marks the task failed. Calling it on an already finished tracker is
// a no-op.
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.finishedLocked() {
		return
	}

	t.Message = fmt.Sprintf("Task failed: %s", errorMsg)
	t.Status = "failed"
	t.UpdateTime = time.Now()

	t.notifyLocked(ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   "failed",
	})

	close(t.Done)
}

// finishedLocked reports whether Done is already closed. Callers must hold
// t.mutex.
func (t *ProgressTracker) finishedLocked() bool {
	return t.Status == "completed" || t.Status == "failed"
}

// notifyLocked sends an update to every subscriber without blocking.
// Callers must hold t.mutex.
func (t *ProgressTracker) notifyLocked(update ProgressUpdate) {
	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Subscribe registers a progress channel and immediately sends the current
// state on it
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	// buffered so slow consumers never block the pipeline
	subscriber := make(chan ProgressUpdate, 10)
	t.Subscribers[subscriber] = true

	subscriber <- ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}

	return subscriber
}

// Unsubscribe removes and closes a progress channel
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	delete(t.Subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedTasks drops finished trackers older than maxAge
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		isCompleted := tracker.Status == "completed" || tracker.Status == "failed"
		isOld := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if isCompleted && isOld {
			delete(s.trackers, id)
		}
	}
}
