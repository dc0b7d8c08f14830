package pixelpipe

import (
	"errors"
	"testing"
)

func TestSchedulerRendersEachNewTimestamp(t *testing.T) {
	source := newFakeSource()
	s := NewFrameScheduler(nil)

	var rendered []float64
	s.Start(ScheduleConfig{
		Source:      source,
		RenderFrame: func(f Frame) error { rendered = append(rendered, f.MediaTime); return nil },
	})

	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	source.emit(testFrame(2, 2, 2.0, 0, 0, 0))
	source.emit(testFrame(2, 2, 3.0, 0, 0, 0))

	if len(rendered) != 3 {
		t.Fatalf("rendered %d frames, want 3", len(rendered))
	}
	for i, want := range []float64{1, 2, 3} {
		if rendered[i] != want {
			t.Errorf("rendered[%d] = %v, want %v", i, rendered[i], want)
		}
	}

	got, deduped, notReady := s.Stats()
	if got != 3 || deduped != 0 || notReady != 0 {
		t.Errorf("Stats() = (%d, %d, %d), want (3, 0, 0)", got, deduped, notReady)
	}
	s.Stop()
}

func TestSchedulerDeduplicatesTimestamp(t *testing.T) {
	source := newFakeSource()
	s := NewFrameScheduler(nil)

	var calls int
	s.Start(ScheduleConfig{
		Source:      source,
		RenderFrame: func(Frame) error { calls++; return nil },
	})

	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	source.emit(testFrame(2, 2, 2.0, 0, 0, 0))

	if calls != 2 {
		t.Fatalf("render calls = %d, want 2 (one per distinct timestamp)", calls)
	}
	_, deduped, _ := s.Stats()
	if deduped != 2 {
		t.Errorf("deduplicated = %d, want 2", deduped)
	}
	s.Stop()
}

func TestSchedulerReadinessGate(t *testing.T) {
	source := newFakeSource()
	source.setReady(ReadyMetadata)
	s := NewFrameScheduler(nil)

	var calls int
	s.Start(ScheduleConfig{
		Source:      source,
		RenderFrame: func(Frame) error { calls++; return nil },
	})

	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	if calls != 0 {
		t.Fatalf("rendered below readiness threshold")
	}
	_, _, notReady := s.Stats()
	if notReady != 1 {
		t.Errorf("belowReadiness = %d, want 1", notReady)
	}

	// The skipped timestamp must not poison dedup: once the source is
	// ready, the same timestamp renders.
	source.setReady(ReadyCurrentData)
	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	if calls != 1 {
		t.Fatalf("render calls = %d, want 1 after readiness recovered", calls)
	}
	s.Stop()
}

func TestSchedulerStopCancelsRegistration(t *testing.T) {
	source := newFakeSource()
	s := NewFrameScheduler(nil)

	s.Start(ScheduleConfig{
		Source:      source,
		RenderFrame: func(Frame) error { t.Error("render after stop"); return nil },
	})
	s.Stop()

	if s.Running() {
		t.Error("Running() = true after Stop")
	}
	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
}

func TestSchedulerShouldContinueStopsLoop(t *testing.T) {
	source := newFakeSource()
	s := NewFrameScheduler(nil)

	continueRuns := true
	var calls int
	s.Start(ScheduleConfig{
		Source:         source,
		RenderFrame:    func(Frame) error { calls++; return nil },
		ShouldContinue: func() bool { return continueRuns },
	})

	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	continueRuns = false
	source.emit(testFrame(2, 2, 2.0, 0, 0, 0))

	if calls != 2 {
		t.Fatalf("render calls = %d, want 2", calls)
	}
	if s.Running() {
		t.Error("scheduler still running after ShouldContinue returned false")
	}
	if source.pendingCount() != 0 {
		t.Error("callback still registered after loop stopped")
	}
	source.emit(testFrame(2, 2, 3.0, 0, 0, 0))
	if calls != 2 {
		t.Errorf("render calls = %d after stop, want 2", calls)
	}
}

func TestSchedulerRenderErrorDoesNotStopLoop(t *testing.T) {
	source := newFakeSource()
	s := NewFrameScheduler(nil)

	var calls int
	s.Start(ScheduleConfig{
		Source: source,
		RenderFrame: func(Frame) error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		},
	})

	source.emit(testFrame(2, 2, 1.0, 0, 0, 0))
	source.emit(testFrame(2, 2, 2.0, 0, 0, 0))

	if calls != 2 {
		t.Fatalf("render calls = %d, want 2", calls)
	}
	rendered, _, _ := s.Stats()
	if rendered != 1 {
		t.Errorf("rendered = %d, want 1 (failed render not counted)", rendered)
	}
	s.Stop()
}
