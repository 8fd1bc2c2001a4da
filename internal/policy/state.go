package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

// Store persists the policy and lock across restarts.
type Store interface {
	Load(ctx context.Context) (models.FilterPolicy, bool, error)
	SaveToggle(ctx context.Context, t Toggle, v bool) error
	SaveLocked(ctx context.Context, locked bool) error
	Reset(ctx context.Context) error
}

// State is the shared, externally mutated policy and lock. Readers always
// get the latest value; there is no per-task snapshot.
type State struct {
	mu     sync.RWMutex
	policy models.FilterPolicy
	locked bool

	store  Store
	logger *logrus.Logger
}

// NewState starts from the all-permissive default policy, unlocked.
// store may be nil.
func NewState(store Store, logger *logrus.Logger) *State {
	if logger == nil {
		logger = logrus.New()
	}
	return &State{
		policy: models.DefaultFilterPolicy(),
		store:  store,
		logger: logger,
	}
}

func (s *State) Snapshot() models.FilterPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *State) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

func (s *State) View() models.PolicyView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.PolicyView{Filters: s.policy, Locked: s.locked}
}

// Set updates one toggle. The in-memory value changes even if persisting fails.
func (s *State) Set(ctx context.Context, t Toggle, v bool) (models.FilterPolicy, error) {
	s.mu.Lock()
	next, err := With(s.policy, t, v)
	if err != nil {
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	s.policy = next
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"toggle": t, "value": v}).Info("filter toggle updated")

	if s.store != nil {
		if err := s.store.SaveToggle(ctx, t, v); err != nil {
			return next, fmt.Errorf("persist toggle %s: %w", t, err)
		}
	}
	return next, nil
}

func (s *State) SetLocked(ctx context.Context, locked bool) error {
	s.mu.Lock()
	s.locked = locked
	s.mu.Unlock()

	return s.persistLock(ctx, locked)
}

// ToggleLocked flips the lock and returns the new value.
func (s *State) ToggleLocked(ctx context.Context) (bool, error) {
	s.mu.Lock()
	s.locked = !s.locked
	locked := s.locked
	s.mu.Unlock()

	return locked, s.persistLock(ctx, locked)
}

// Reset restores the default policy and releases the lock.
func (s *State) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.policy = models.DefaultFilterPolicy()
	s.locked = false
	s.mu.Unlock()

	s.logger.Info("policy reset to defaults")
	if s.store == nil {
		return nil
	}
	return s.store.Reset(ctx)
}

// Load hydrates the state from the store. Without a store it is a no-op.
func (s *State) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	p, locked, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	s.mu.Lock()
	s.policy = p
	s.locked = locked
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"filters": p, "locked": locked}).Info("policy loaded")
	return nil
}

func (s *State) persistLock(ctx context.Context, locked bool) error {
	s.logger.WithField("locked", locked).Info("selection lock updated")
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveLocked(ctx, locked); err != nil {
		return fmt.Errorf("persist lock: %w", err)
	}
	return nil
}
