package credentials

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. State is lost on exit.
//
// MemoryStore is safe for concurrent use; every operation runs under a single
// mutex so outcome transitions are atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Credential
	order []string

	// now is the clock used for timestamps. Overridden in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Credential),
		now:  time.Now,
	}
}

// ListActive returns non-removed credentials in selection order.
func (s *MemoryStore) ListActive(ctx context.Context) ([]Credential, error) {
	s.mu.RLock()
	active := make([]Credential, 0, len(s.order))
	for _, id := range s.order {
		if c := s.byID[id]; !c.Removed {
			active = append(active, cloneCredential(*c))
		}
	}
	s.mu.RUnlock()

	return Rank(active), nil
}

// List returns every credential ordered by opts.
func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]Credential, error) {
	opts = opts.normalize()

	s.mu.RLock()
	all := make([]Credential, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, cloneCredential(*s.byID[id]))
	}
	s.mu.RUnlock()

	less := lessFor(opts.SortBy)
	sort.SliceStable(all, func(i, j int) bool {
		if opts.Descending {
			return less(all[j], all[i])
		}
		return less(all[i], all[j])
	})

	return all, nil
}

// Get returns the credential with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cloneCredential(*c), nil
}

// RecordOutcome applies an attempt outcome to the credential's counters.
func (s *MemoryStore) RecordOutcome(ctx context.Context, id string, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		slog.DebugContext(ctx, "outcome for unknown credential ignored",
			"component", "credentials.memory",
			"success", outcome.Success,
		)
		return nil
	}

	applyOutcome(c, outcome, s.now)
	return nil
}

// SetRemoved sets the soft-delete flag.
func (s *MemoryStore) SetRemoved(ctx context.Context, id string, removed bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	c.Removed = removed
	return true, nil
}

// InsertIfAbsent registers a new credential.
func (s *MemoryStore) InsertIfAbsent(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; ok {
		return false, nil
	}

	s.byID[id] = &Credential{ID: id, AddedAt: s.now()}
	s.order = append(s.order, id)
	return true, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneCredential(c Credential) Credential {
	if c.FirstErrorAt != nil {
		t := *c.FirstErrorAt
		c.FirstErrorAt = &t
	}
	if c.ErrorStreakStartedAt != nil {
		t := *c.ErrorStreakStartedAt
		c.ErrorStreakStartedAt = &t
	}
	return c
}

// lessFor returns the ascending comparator for a sort column. Null
// timestamps sort first, matching SQLite's NULL ordering.
func lessFor(field SortField) func(a, b Credential) bool {
	switch field {
	case SortByKey:
		return func(a, b Credential) bool { return a.ID < b.ID }
	case SortBySuccessfulRequests:
		return func(a, b Credential) bool { return a.SuccessCount < b.SuccessCount }
	case SortByErrorRequests:
		return func(a, b Credential) bool { return a.ErrorCount < b.ErrorCount }
	case SortByErrorsSinceLastSuccess:
		return func(a, b Credential) bool { return a.ErrorsSinceLastSuccess < b.ErrorsSinceLastSuccess }
	case SortByFirstErrorAt:
		return func(a, b Credential) bool { return timeLess(a.FirstErrorAt, b.FirstErrorAt) }
	case SortByErrorCounterStartedAt:
		return func(a, b Credential) bool { return timeLess(a.ErrorStreakStartedAt, b.ErrorStreakStartedAt) }
	case SortByRemoved:
		return func(a, b Credential) bool { return !a.Removed && b.Removed }
	default:
		return func(a, b Credential) bool { return a.AddedAt.Before(b.AddedAt) }
	}
}

func timeLess(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}
