// internal/services/progress_service_test.go
package services

import (
	"testing"
)

func TestTrackerCompleteIsIdempotent(t *testing.T) {
	service := NewProgressService()
	tracker := service.CreateTracker("task_repeat")

	tracker.Complete("done")
	tracker.Complete("done again")
	tracker.Fail("too late")

	snapshot := tracker.Snapshot()
	if snapshot.Status != "completed" {
		t.Errorf("status = %q, want completed", snapshot.Status)
	}
	if snapshot.Progress != 100 {
		t.Errorf("progress = %d, want 100", snapshot.Progress)
	}

	select {
	case <-tracker.Done:
	default:
		t.Error("Done channel not closed after Complete")
	}
}

func TestTrackerFailIsIdempotent(t *testing.T) {
	service := NewProgressService()
	tracker := service.CreateTracker("task_fail")

	tracker.Fail("provider down")
	tracker.Fail("provider still down")
	tracker.Complete("too late")

	if snapshot := tracker.Snapshot(); snapshot.Status != "failed" {
		t.Errorf("status = %q, want failed", snapshot.Status)
	}
}

func TestCreateTrackerReusesRunningTracker(t *testing.T) {
	service := NewProgressService()
	first := service.CreateTracker("task_live")
	first.UpdateProgress(40, "halfway")

	second := service.CreateTracker("task_live")
	if second != first {
		t.Fatal("running tracker was replaced")
	}
	if snapshot := second.Snapshot(); snapshot.Progress != 40 {
		t.Errorf("progress = %d, want 40", snapshot.Progress)
	}
}

func TestCreateTrackerReplacesFinishedTracker(t *testing.T) {
	service := NewProgressService()
	first := service.CreateTracker("task_rerun")
	first.Complete("first run done")

	second := service.CreateTracker("task_rerun")
	if second == first {
		t.Fatal("finished tracker was reused")
	}

	snapshot := second.Snapshot()
	if snapshot.Status != "running" {
		t.Errorf("status = %q, want running", snapshot.Status)
	}
	if snapshot.Progress != 0 {
		t.Errorf("progress = %d, want 0", snapshot.Progress)
	}

	// the fresh tracker must finish cleanly
	second.Complete("second run done")
	select {
	case <-second.Done:
	default:
		t.Error("Done channel not closed on the replacement tracker")
	}
}

func TestSubscribeReceivesCurrentState(t *testing.T) {
	service := NewProgressService()
	tracker := service.CreateTracker("task_sub")
	tracker.UpdateProgress(25, "structuring")

	subscriber := tracker.Subscribe()
	defer tracker.Unsubscribe(subscriber)

	update := <-subscriber
	if update.Progress != 25 || update.Status != "running" {
		t.Errorf("initial update = %+v", update)
	}
}
