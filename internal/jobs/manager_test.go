package jobs

import (
	"errors"
	"testing"

	"video-transcriber/internal/domain"
)

// TestManagerLifecycle verifies normal progression to done state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("run-1", "session-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}

	for _, status := range []domain.RunStatus{
		domain.RunStatusAwaitingUpload,
		domain.RunStatusExtracting,
		domain.RunStatusTranscribing,
		domain.RunStatusDone,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.RunStatusDone {
		t.Fatalf("current status = %s, want done", current.Status)
	}
	if current.SessionID != "session-1" {
		t.Fatalf("session id = %q", current.SessionID)
	}
	if m.IsRunning() {
		t.Fatal("done run must not hold the session")
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, status := range []domain.RunStatus{domain.RunStatusTranscribing, domain.RunStatusDone, domain.RunStatusExtracting} {
		if err := m.Transition(status); err == nil {
			t.Fatalf("expected invalid transition error for encoder_check -> %s", status)
		}
	}
}

// TestManagerRejectsSecondRun checks one active run per session.
func TestManagerRejectsSecondRun(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("run-2", ""); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second start error = %v, want %v", err, ErrRunInProgress)
	}

	if err := m.Fail(domain.FailureEncoderUnavailable, "missing"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.Start("run-2", ""); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
}

// TestManagerFailRecordsKind verifies failure metadata.
func TestManagerFailRecordsKind(t *testing.T) {
	m := NewManager()
	_ = m.Start("run-1", "")
	_ = m.Transition(domain.RunStatusAwaitingUpload)
	_ = m.Transition(domain.RunStatusExtracting)

	if err := m.Fail(domain.FailureExtractionTimeout, "Timeout: the video is too long to process"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	current := m.Current()
	if current.Status != domain.RunStatusFailed || current.Failure != domain.FailureExtractionTimeout {
		t.Fatalf("current = %+v", current)
	}
	if err := m.Fail(domain.FailureTranscription, "again"); err == nil {
		t.Fatal("expected failed -> failed to be rejected")
	}
}

// TestManagerTransitionWithoutRun checks the run id guard.
func TestManagerTransitionWithoutRun(t *testing.T) {
	m := NewManager()
	if err := m.Transition(domain.RunStatusEncoderCheck); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("error = %v, want %v", err, ErrNoActiveRun)
	}
	if err := m.Fail(domain.FailureTranscription, "x"); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("error = %v, want %v", err, ErrNoActiveRun)
	}
}

// TestManagerRenderGatesUpload verifies the page render encoder check.
func TestManagerRenderGatesUpload(t *testing.T) {
	m := NewManager()

	run := m.Render(domain.EncoderStatus{Hint: "install ffmpeg"})
	if run.Status != domain.RunStatusFailed || run.Failure != domain.FailureEncoderUnavailable {
		t.Fatalf("render without encoder = %+v", run)
	}
	if run.Message != "install ffmpeg" {
		t.Fatalf("message = %q", run.Message)
	}

	run = m.Render(domain.EncoderStatus{Available: true, Path: "ffmpeg"})
	if run.Status != domain.RunStatusAwaitingUpload {
		t.Fatalf("render with encoder = %s, want awaiting_upload", run.Status)
	}
	if m.IsRunning() {
		t.Fatal("render must not claim the session")
	}
}

// TestManagerRenderKeepsActiveRun verifies a page view does not disturb a run.
func TestManagerRenderKeepsActiveRun(t *testing.T) {
	m := NewManager()
	_ = m.Start("run-1", "")
	_ = m.Transition(domain.RunStatusAwaitingUpload)
	_ = m.Transition(domain.RunStatusExtracting)

	run := m.Render(domain.EncoderStatus{Available: true})
	if run.ID != "run-1" || run.Status != domain.RunStatusExtracting {
		t.Fatalf("render = %+v, want active run unchanged", run)
	}
}

// TestManagerReset returns to idle.
func TestManagerReset(t *testing.T) {
	m := NewManager()
	_ = m.Start("run-1", "")
	m.Reset()
	if m.Current().Status != domain.RunStatusIdle || m.IsRunning() {
		t.Fatalf("current = %+v, want idle", m.Current())
	}
}
