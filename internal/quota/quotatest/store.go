// Package quotatest provides an in-memory quota store for tests.
package quotatest

import (
	"context"
	"sync"
	"time"

	"github.com/burka/podpulse/internal/quota"
	"github.com/google/uuid"
)

// Store is a mutex-guarded implementation of quota.Store and
// quota.WatermarkStore that also tracks Stripe customer links. See Fail.
type Store struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*quota.Counters
	watermarks map[string]time.Time
	customers  map[uuid.UUID]string
	err        error

	ResetCalls int
}

var (
	_ quota.Store          = (*Store)(nil)
	_ quota.WatermarkStore = (*Store)(nil)
)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:   make(map[uuid.UUID]*quota.Counters),
		watermarks: make(map[string]time.Time),
		customers:  make(map[uuid.UUID]string),
	}
}

// Fail makes subsequent calls return err; nil restores normal behavior.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Put replaces the account row for userID.
func (s *Store) Put(userID uuid.UUID, c quota.Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	s.accounts[userID] = &cp
}

// Account returns the stored counters for userID.
func (s *Store) Account(userID uuid.UUID) (quota.Counters, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.accounts[userID]
	if !ok {
		return quota.Counters{}, false
	}
	return *c, true
}

// Watermark returns the stored watermark for key.
func (s *Store) Watermark(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.watermarks[key]
	return t, ok
}

func (s *Store) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.accounts[userID]; !ok {
		s.accounts[userID] = &quota.Counters{Plan: quota.PlanFree}
	}
	return nil
}

func (s *Store) GetCounters(ctx context.Context, userID uuid.UUID) (quota.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return quota.Counters{}, s.err
	}
	c, ok := s.accounts[userID]
	if !ok {
		return quota.Counters{}, quota.ErrAccountNotFound
	}
	return *c, nil
}

func (s *Store) TryConsume(ctx context.Context, userID uuid.UUID, action quota.Action) (quota.Counters, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return quota.Counters{}, false, s.err
	}
	c, ok := s.accounts[userID]
	if !ok {
		return quota.Counters{}, false, quota.ErrAccountNotFound
	}
	field, err := counterField(c, action)
	if err != nil {
		return quota.Counters{}, false, err
	}
	ceiling, _ := quota.LimitsFor(c.Plan).Ceiling(action)
	if !ceiling.Allows(*field) {
		return *c, false, nil
	}
	*field++
	return *c, true, nil
}

func (s *Store) Release(ctx context.Context, userID uuid.UUID, action quota.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	c, ok := s.accounts[userID]
	if !ok {
		return quota.ErrAccountNotFound
	}
	field, err := counterField(c, action)
	if err != nil {
		return err
	}
	if *field > 0 {
		*field--
	}
	return nil
}

func (s *Store) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.ResetCalls++
	var n int64
	for _, c := range s.accounts {
		if !c.Plan.IsPaid() {
			continue
		}
		c.AIAnalysesUsed = 0
		c.ChartsAccessed = 0
		n++
	}
	return n, nil
}

func (s *Store) CreateWatermarkIfAbsent(ctx context.Context, key string, t time.Time) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, time.Time{}, s.err
	}
	if existing, ok := s.watermarks[key]; ok {
		return false, existing, nil
	}
	s.watermarks[key] = t
	return true, t, nil
}

func (s *Store) SetWatermark(ctx context.Context, key string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.watermarks[key] = t
	return nil
}

// SetPlan changes the plan of userID, creating the account if missing.
func (s *Store) SetPlan(ctx context.Context, userID uuid.UUID, plan quota.PlanID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	c, ok := s.accounts[userID]
	if !ok {
		c = &quota.Counters{}
		s.accounts[userID] = c
	}
	c.Plan = plan
	if customerID != "" {
		s.customers[userID] = customerID
	}
	return nil
}

// SetPlanByCustomer changes the plan of the account linked to customerID.
func (s *Store) SetPlanByCustomer(ctx context.Context, customerID string, plan quota.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for userID, id := range s.customers {
		if id == customerID {
			s.accounts[userID].Plan = plan
			return nil
		}
	}
	return quota.ErrAccountNotFound
}

// StripeCustomerID returns the customer linked to userID.
func (s *Store) StripeCustomerID(ctx context.Context, userID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if _, ok := s.accounts[userID]; !ok {
		return "", quota.ErrAccountNotFound
	}
	return s.customers[userID], nil
}

// SetStripeCustomerID links userID to customerID.
func (s *Store) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.accounts[userID]; !ok {
		return quota.ErrAccountNotFound
	}
	s.customers[userID] = customerID
	return nil
}

func counterField(c *quota.Counters, action quota.Action) (*int64, error) {
	switch action {
	case quota.ActionTrackPodcast:
		return &c.PodcastsTracked, nil
	case quota.ActionAIAnalysis:
		return &c.AIAnalysesUsed, nil
	case quota.ActionAccessCharts:
		return &c.ChartsAccessed, nil
	}
	return nil, quota.ErrInvalidAction
}
