// Package memory provides an in-memory store for testing and development.
// It implements the progress and rollup store interfaces with the same
// visibility rules as the SQLite store: list methods return active rows
// only, updates in chronological period order.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

type Store struct {
	mu sync.RWMutex

	years     map[string]fiscal.FinancialYear
	kpas      map[plan.KPAID]plan.KPA
	items     map[plan.PlanItemID]plan.OperationalPlanItem
	targets   map[plan.TargetID]plan.Target
	updates   map[plan.UpdateID]plan.ProgressUpdate
	costLines map[plan.CostLineID]plan.CostLine
}

func New() *Store {
	return &Store{
		years:     make(map[string]fiscal.FinancialYear),
		kpas:      make(map[plan.KPAID]plan.KPA),
		items:     make(map[plan.PlanItemID]plan.OperationalPlanItem),
		targets:   make(map[plan.TargetID]plan.Target),
		updates:   make(map[plan.UpdateID]plan.ProgressUpdate),
		costLines: make(map[plan.CostLineID]plan.CostLine),
	}
}

// =============================================================================
// FINANCIAL YEARS
// =============================================================================

// SaveFinancialYear persists a year. Activating one deactivates all
// others in the same write, keeping at most one active year.
func (s *Store) SaveFinancialYear(_ context.Context, fy fiscal.FinancialYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fy.ID == "" {
		fy.ID = plan.NewID()
	}
	if fy.Active {
		for id, other := range s.years {
			if id != fy.ID && other.Active {
				other.Active = false
				s.years[id] = other
			}
		}
	}
	s.years[fy.ID] = fy
	return nil
}

func (s *Store) GetFinancialYear(_ context.Context, id string) (*fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if fy, ok := s.years[id]; ok {
		return &fy, nil
	}
	return nil, nil
}

func (s *Store) ActiveFinancialYear(_ context.Context) (*fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fy := range s.years {
		if fy.Active {
			out := fy
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListFinancialYears(_ context.Context) ([]fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fiscal.FinancialYear, 0, len(s.years))
	for _, fy := range s.years {
		out = append(out, fy)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Start.Before(out[i].Start) })
	return out, nil
}

// =============================================================================
// PLAN HIERARCHY
// =============================================================================

func (s *Store) SaveKPA(_ context.Context, k plan.KPA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kpas[k.ID] = k
	return nil
}

func (s *Store) GetKPA(_ context.Context, id plan.KPAID) (*plan.KPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.kpas[id]; ok {
		return &k, nil
	}
	return nil, nil
}

func (s *Store) ListKPAs(_ context.Context, financialYearID string) ([]plan.KPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []plan.KPA
	for _, k := range s.kpas {
		if k.FinancialYearID == financialYearID && k.State.IsActive() {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *Store) SavePlanItem(_ context.Context, item plan.OperationalPlanItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *Store) ListPlanItems(_ context.Context, kpa plan.KPAID) ([]plan.OperationalPlanItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []plan.OperationalPlanItem
	for _, item := range s.items {
		if item.KPAID == kpa && item.State.IsActive() {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveTarget(_ context.Context, t plan.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.ID] = t
	return nil
}

func (s *Store) GetTarget(_ context.Context, id plan.TargetID) (*plan.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.targets[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *Store) ListTargets(_ context.Context, item plan.PlanItemID) ([]plan.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []plan.Target
	for _, t := range s.targets {
		if t.PlanItemID == item && t.State.IsActive() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// FinancialYearForTarget walks target -> plan item -> KPA -> year.
func (s *Store) FinancialYearForTarget(_ context.Context, id plan.TargetID) (*fiscal.FinancialYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, nil
	}
	item, ok := s.items[t.PlanItemID]
	if !ok {
		return nil, nil
	}
	k, ok := s.kpas[item.KPAID]
	if !ok {
		return nil, nil
	}
	if fy, ok := s.years[k.FinancialYearID]; ok {
		return &fy, nil
	}
	return nil, nil
}

// =============================================================================
// PROGRESS UPDATES
// =============================================================================

func (s *Store) GetUpdate(_ context.Context, id plan.UpdateID) (*plan.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.updates[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *Store) ListUpdates(_ context.Context, target plan.TargetID, from, to fiscal.Date) ([]plan.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []plan.ProgressUpdate
	for _, u := range s.updates {
		if u.TargetID != target || !u.State.IsActive() {
			continue
		}
		if u.PeriodEnd.AfterOrEqual(from) && u.PeriodEnd.BeforeOrEqual(to) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	return out, nil
}

// UpsertDraft replaces the active row for the draft's natural key, or
// creates one. Last write wins; no version check.
func (s *Store) UpsertDraft(_ context.Context, u plan.ProgressUpdate) (plan.ProgressUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range s.updates {
		if existing.State.IsActive() && existing.SamePeriod(u) {
			u.ID = id
			u.CreatedAt = existing.CreatedAt
			u.CreatedBy = existing.CreatedBy
			u.Submitted = existing.Submitted
			u.SubmittedAt = existing.SubmittedAt
			u.UpdatedAt = now
			s.updates[id] = u
			return u, nil
		}
	}

	u.ID = plan.UpdateID(plan.NewID())
	u.CreatedAt = now
	u.UpdatedAt = now
	s.updates[u.ID] = u
	return u, nil
}

func (s *Store) SaveUpdate(_ context.Context, u plan.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.UpdatedAt = time.Now().UTC()
	s.updates[u.ID] = u
	return nil
}

// =============================================================================
// COST LINES
// =============================================================================

func (s *Store) SaveCostLine(_ context.Context, cl plan.CostLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl.ID == "" {
		cl.ID = plan.CostLineID(plan.NewID())
	}
	s.costLines[cl.ID] = cl
	return nil
}

func (s *Store) ListCostLines(_ context.Context, item plan.PlanItemID) ([]plan.CostLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []plan.CostLine
	for _, cl := range s.costLines {
		if cl.PlanItemID == item && cl.State.IsActive() {
			out = append(out, cl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CostPeriodStart.Before(out[j].CostPeriodStart) })
	return out, nil
}
