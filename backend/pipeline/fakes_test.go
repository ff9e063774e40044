package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"vukamap/backend/vision"
)

type memStore struct {
	mu      sync.Mutex
	nextID  int64
	reports map[int64]*ReportRecord

	resolveCalls atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{reports: map[int64]*ReportRecord{}}
}

func (s *memStore) CreateReport(_ context.Context, r *ReportRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *r
	cp.ID = s.nextID
	s.reports[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memStore) GetReport(_ context.Context, id int64) (*ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d: %w", id, ErrReportNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ResolveReport(_ context.Context, id int64, res *Resolution) error {
	s.resolveCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return fmt.Errorf("report %d: %w", id, ErrReportNotFound)
	}
	if r.Resolved {
		return fmt.Errorf("report %d: %w", id, ErrAlreadyResolved)
	}
	after := res.After
	outcome := res.Outcome
	resolvedAt := res.ResolvedAt
	r.Resolved = true
	r.ClaimedBy = res.ClaimedBy
	r.ResolvedAt = &resolvedAt
	r.AfterImage = res.AfterImage
	r.After = &after
	r.Verification = &outcome
	return nil
}

func (s *memStore) get(id int64) ReportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reports[id]
}

// txStore resolves and credits as one unit, restoring the report when the
// credit fails.
type txStore struct {
	*memStore
	ledger *memLedger
	txMu   sync.Mutex
}

func (s *txStore) ResolveAndCredit(ctx context.Context, id int64, res *Resolution, amount int) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	before, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ResolveReport(ctx, id, res); err != nil {
		return err
	}
	if err := s.ledger.CreditUser(ctx, res.ClaimedBy, amount); err != nil {
		s.mu.Lock()
		s.reports[id] = before
		s.mu.Unlock()
		return fmt.Errorf("report %d: %w: %w", id, ErrRewardTransfer, err)
	}
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	balances map[string]int
	calls    int
	err      error
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[string]int{}}
}

func (l *memLedger) CreditUser(_ context.Context, userID string, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.calls++
	l.balances[userID] += amount
	return nil
}

func (l *memLedger) snapshot() (int, map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := map[string]int{}
	for k, v := range l.balances {
		cp[k] = v
	}
	return l.calls, cp
}

// fixedAnalyzer returns preset assessments and counts calls.
type fixedAnalyzer struct {
	dirtiness   vision.Assessment
	cleanliness vision.Assessment

	dirtinessCalls   atomic.Int32
	cleanlinessCalls atomic.Int32
}

func (a *fixedAnalyzer) AnalyzeDirtiness(context.Context, []byte) vision.Assessment {
	a.dirtinessCalls.Add(1)
	return a.dirtiness
}

func (a *fixedAnalyzer) AnalyzeCleanliness(context.Context, []byte) vision.Assessment {
	a.cleanlinessCalls.Add(1)
	return a.cleanliness
}

type published struct {
	key     string
	message interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) PublishWithRoutingKey(key string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{key, message})
	return nil
}

type failingBackend struct{}

func (failingBackend) Analyze(context.Context, []byte, ...vision.Feature) (*vision.Detection, error) {
	return nil, errors.New("dial tcp: i/o timeout")
}
