package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"video-transcriber/internal/domain"
)

// ErrRunInProgress is returned when starting a second active run in a session.
var ErrRunInProgress = errors.New("run already in progress")

// ErrNoActiveRun is returned when a run transition is requested without a run.
var ErrNoActiveRun = errors.New("no active run")

// Manager tracks the run state of one session and enforces its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
	now     func() time.Time
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{Status: domain.RunStatusIdle},
		now:     time.Now,
	}
}

// Render re-enters the encoder check for a page view and settles on
// AwaitingUpload or Failed. An active run is left untouched.
func (m *Manager) Render(encoder domain.EncoderStatus) domain.Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isActive() {
		return m.current
	}

	m.current = domain.Run{Status: domain.RunStatusEncoderCheck, UpdatedAt: m.now()}
	if encoder.Available {
		m.current.Status = domain.RunStatusAwaitingUpload
	} else {
		m.current.Status = domain.RunStatusFailed
		m.current.Failure = domain.FailureEncoderUnavailable
		m.current.Message = encoder.Hint
	}
	return m.current
}

// Start claims the session for runID and moves it to the encoder check.
func (m *Manager) Start(runID, sessionID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isActive() {
		return ErrRunInProgress
	}

	now := m.now()
	m.current = domain.Run{
		ID:        runID,
		SessionID: sessionID,
		Status:    domain.RunStatusEncoderCheck,
		StartedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Transition validates and applies a state change of the active run.
func (m *Manager) Transition(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return ErrNoActiveRun
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	m.current.UpdatedAt = m.now()
	return nil
}

// Fail moves the active run to Failed with a classified message.
func (m *Manager) Fail(kind domain.FailureKind, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return ErrNoActiveRun
	}
	if !isValidTransition(m.current.Status, domain.RunStatusFailed) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, domain.RunStatusFailed)
	}

	m.current.Status = domain.RunStatusFailed
	m.current.Failure = kind
	m.current.Message = message
	m.current.UpdatedAt = m.now()
	return nil
}

// Current returns a snapshot of the session run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle, UpdatedAt: m.now()}
}

// IsRunning reports whether a run currently holds the session.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isActive()
}

func (m *Manager) isActive() bool {
	return m.current.ID != "" && isRunning(m.current.Status)
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusEncoderCheck,
		domain.RunStatusAwaitingUpload,
		domain.RunStatusExtracting,
		domain.RunStatusTranscribing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusEncoderCheck
	case domain.RunStatusEncoderCheck:
		return to == domain.RunStatusAwaitingUpload || to == domain.RunStatusFailed
	case domain.RunStatusAwaitingUpload:
		return to == domain.RunStatusExtracting || to == domain.RunStatusEncoderCheck || to == domain.RunStatusFailed
	case domain.RunStatusExtracting:
		return to == domain.RunStatusTranscribing || to == domain.RunStatusFailed
	case domain.RunStatusTranscribing:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed
	case domain.RunStatusDone, domain.RunStatusFailed:
		return to == domain.RunStatusEncoderCheck || to == domain.RunStatusIdle
	default:
		return false
	}
}
