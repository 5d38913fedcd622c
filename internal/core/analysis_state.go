package core

import (
	"errors"
	"sync"
	"time"

	"drugsecure/pkg/domain"
)

// AnalysisPhase is the lifecycle position of the most recent classification.
type AnalysisPhase string

// Analysis phases. Running is entered only through a run request.
const (
	PhasePending  AnalysisPhase = "pending"
	PhaseRunning  AnalysisPhase = "running"
	PhaseComplete AnalysisPhase = "complete"
	PhaseStale    AnalysisPhase = "stale"
	PhaseFailed   AnalysisPhase = "failed"
)

var (
	// ErrAnalysisInProgress is returned when a run is requested while another
	// is still running.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrNoAnalysis is returned when no completed analysis is available.
	ErrNoAnalysis = errors.New("no analysis available")
)

// AnalysisState is a point-in-time copy of the state machine. Analysis is
// set in Complete and Stale, and while Running if an earlier run completed.
type AnalysisState struct {
	Phase     AnalysisPhase    `json:"phase"`
	Analysis  *domain.Analysis `json:"analysis,omitempty"`
	Error     string           `json:"error,omitempty"`
	Err       error            `json:"-"`
	Revision  uint64           `json:"revision"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type analysisMachine struct {
	mu    sync.Mutex
	state AnalysisState
}

func newAnalysisMachine(now time.Time) *analysisMachine {
	return &analysisMachine{state: AnalysisState{Phase: PhasePending, UpdatedAt: now}}
}

func (m *analysisMachine) snapshot() AnalysisState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.state
	if out.Analysis != nil {
		cp := *out.Analysis
		out.Analysis = &cp
	}
	return out
}

// begin moves to Running.
func (m *analysisMachine) begin(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase == PhaseRunning {
		return ErrAnalysisInProgress
	}
	m.state.Phase = PhaseRunning
	m.state.Error = ""
	m.state.Err = nil
	m.state.UpdatedAt = now
	return nil
}

// complete stores a finished run. The output is Stale straight away when the
// sample set moved on while it ran.
func (m *analysisMachine) complete(a domain.Analysis, current uint64, now time.Time) AnalysisPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Analysis = &a
	m.state.Revision = a.Revision
	m.state.UpdatedAt = now
	if current != a.Revision {
		m.state.Phase = PhaseStale
	} else {
		m.state.Phase = PhaseComplete
	}
	return m.state.Phase
}

func (m *analysisMachine) fail(err error, revision uint64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Phase = PhaseFailed
	m.state.Analysis = nil
	m.state.Err = err
	m.state.Error = err.Error()
	m.state.Revision = revision
	m.state.UpdatedAt = now
}

// mutated reacts to a committed change of the sample set.
func (m *analysisMachine) mutated(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state.Phase {
	case PhaseComplete:
		m.state.Phase = PhaseStale
	case PhaseFailed:
		m.state.Phase = PhasePending
		m.state.Err = nil
		m.state.Error = ""
	default:
		return
	}
	m.state.UpdatedAt = now
}

// reset discards any result unless a run is in flight; that run will
// complete as Stale.
func (m *analysisMachine) reset(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase == PhaseRunning {
		return
	}
	m.state = AnalysisState{Phase: PhasePending, UpdatedAt: now}
}

func (m *analysisMachine) current() (domain.Analysis, AnalysisPhase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Analysis == nil {
		return domain.Analysis{}, m.state.Phase, ErrNoAnalysis
	}
	return *m.state.Analysis, m.state.Phase, nil
}
