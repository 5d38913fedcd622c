// Package memory provides an in-memory implementation of the sample
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"drugsecure/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Sample aliases domain.Sample.
	Sample = domain.Sample
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	samples map[string]Sample
	order   []string
	nextSeq int
}

// Snapshot captures a point-in-time clone of the store state. Samples are
// kept in insertion order.
type Snapshot struct {
	Samples []Sample `json:"samples"`
	NextSeq int      `json:"next_seq"`
}

func newMemoryState() memoryState {
	return memoryState{samples: make(map[string]Sample), nextSeq: 1}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{Samples: make([]Sample, 0, len(state.order)), NextSeq: state.nextSeq}
	for _, id := range state.order {
		s.Samples = append(s.Samples, state.samples[id].Clone())
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, sample := range s.Samples {
		if sample.ID == "" || sample.IsBaseline() {
			continue
		}
		if _, dup := state.samples[sample.ID]; dup {
			continue
		}
		sample.Origin = domain.OriginUser
		state.samples[sample.ID] = sample.Clone()
		state.order = append(state.order, sample.ID)
		if seq := parseSeq(sample.ID); seq >= state.nextSeq {
			state.nextSeq = seq + 1
		}
	}
	if s.NextSeq > state.nextSeq {
		state.nextSeq = s.NextSeq
	}
	return state
}

func parseSeq(id string) int {
	var n int
	if _, err := fmt.Sscanf(id, domain.UserIDPrefix+"%d", &n); err != nil {
		return 0
	}
	return n
}

func (s memoryState) clone() memoryState {
	cp := memoryState{
		samples: make(map[string]Sample, len(s.samples)),
		order:   append([]string(nil), s.order...),
		nextSeq: s.nextSeq,
	}
	for k, v := range s.samples {
		cp.samples[k] = v.Clone()
	}
	return cp
}

func (s *memoryState) remove(id string) {
	delete(s.samples, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Store provides an in-memory transactional store for user-entered samples.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	engine   *RulesEngine
	nowFn    func() time.Time
	revision uint64
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
	s.revision++
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// Revision reports the number of committed mutations.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

type transaction struct {
	state    memoryState
	changes  []Change
	now      time.Time
	revision uint64
}

type transactionView struct {
	state    *memoryState
	revision uint64
}

func newTransactionView(state *memoryState, revision uint64) TransactionView {
	return transactionView{state: state, revision: revision}
}

// Revision returns the committed revision the view was taken from.
func (v transactionView) Revision() uint64 {
	return v.revision
}

// ListSamples returns all samples in insertion order.
func (v transactionView) ListSamples() []Sample {
	out := make([]Sample, 0, len(v.state.order))
	for _, id := range v.state.order {
		out = append(out, v.state.samples[id].Clone())
	}
	return out
}

// FindSample retrieves a sample by ID.
func (v transactionView) FindSample(id string) (Sample, bool) {
	sample, ok := v.state.samples[id]
	if !ok {
		return Sample{}, false
	}
	return sample.Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state:    s.state.clone(),
		now:      s.nowFn(),
		revision: s.revision,
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state, tx.revision)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	if len(tx.changes) > 0 {
		s.revision++
	}
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot, s.revision))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state, tx.revision)
}

// FindSample exposes sample lookup within the transaction scope.
func (tx *transaction) FindSample(id string) (Sample, bool) {
	return tx.Snapshot().FindSample(id)
}

// CreateSample stores a new user sample, assigning the next C-### identifier
// when none is supplied.
func (tx *transaction) CreateSample(s Sample) (Sample, error) {
	if strings.HasPrefix(s.ID, domain.BaselineIDPrefix) || s.Origin == domain.OriginBaseline {
		return Sample{}, domain.ErrBaselineImmutable
	}
	if s.ID == "" {
		for {
			s.ID = fmt.Sprintf("%s%03d", domain.UserIDPrefix, tx.state.nextSeq)
			tx.state.nextSeq++
			if _, taken := tx.state.samples[s.ID]; !taken {
				break
			}
		}
	} else if seq := parseSeq(s.ID); seq >= tx.state.nextSeq {
		tx.state.nextSeq = seq + 1
	}
	if _, exists := tx.state.samples[s.ID]; exists {
		return Sample{}, fmt.Errorf("sample %q already exists", s.ID)
	}
	s.Origin = domain.OriginUser
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.samples[s.ID] = s.Clone()
	tx.state.order = append(tx.state.order, s.ID)
	after := s.Clone()
	tx.recordChange(Change{Action: domain.ActionCreate, After: &after})
	return s.Clone(), nil
}

// UpdateSample mutates an existing user sample. The identifier, origin and
// creation time cannot be changed by the mutator.
func (tx *transaction) UpdateSample(id string, mutator func(*Sample) error) (Sample, error) {
	if strings.HasPrefix(id, domain.BaselineIDPrefix) {
		return Sample{}, domain.ErrBaselineImmutable
	}
	stored, ok := tx.state.samples[id]
	if !ok {
		return Sample{}, domain.ErrNotFound{ID: id}
	}
	before := stored.Clone()
	current := stored.Clone()
	if err := mutator(&current); err != nil {
		return Sample{}, err
	}
	current.ID = id
	current.Origin = domain.OriginUser
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.samples[id] = current.Clone()
	after := current.Clone()
	tx.recordChange(Change{Action: domain.ActionUpdate, Before: &before, After: &after})
	return current.Clone(), nil
}

// DeleteSample removes a user sample.
func (tx *transaction) DeleteSample(id string) error {
	if strings.HasPrefix(id, domain.BaselineIDPrefix) {
		return domain.ErrBaselineImmutable
	}
	current, ok := tx.state.samples[id]
	if !ok {
		return domain.ErrNotFound{ID: id}
	}
	tx.state.remove(id)
	before := current.Clone()
	tx.recordChange(Change{Action: domain.ActionDelete, Before: &before})
	return nil
}

// DeleteAllSamples removes every user sample and returns how many were
// dropped. The identifier sequence is not rewound.
func (tx *transaction) DeleteAllSamples() int {
	ids := append([]string(nil), tx.state.order...)
	for _, id := range ids {
		before := tx.state.samples[id].Clone()
		tx.state.remove(id)
		tx.recordChange(Change{Action: domain.ActionDelete, Before: &before})
	}
	return len(ids)
}

// GetSample retrieves a sample by ID.
func (s *Store) GetSample(id string) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.state.samples[id]
	if !ok {
		return Sample{}, false
	}
	return sample.Clone(), true
}

// ListSamples returns all stored samples in insertion order.
func (s *Store) ListSamples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state, s.revision).ListSamples()
}
