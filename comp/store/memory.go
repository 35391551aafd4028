// Package store provides an in-memory comp.Store implementation
// (for tests and local development).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/comp-engine/comp"
)

// =============================================================================
// MEMORY STORE - In-memory implementation
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	structures map[comp.StructureID]*comp.CompensationStructure
	current    map[comp.EmployeeID]comp.StructureID

	// monthSlot enforces the non-rejected (employee, month) uniqueness.
	monthSlot map[slotKey]comp.StructureID

	catalogJSON string
}

type slotKey struct {
	EmployeeID comp.EmployeeID
	Month      string
}

func NewMemory() *Memory {
	return &Memory{
		structures: make(map[comp.StructureID]*comp.CompensationStructure),
		current:    make(map[comp.EmployeeID]comp.StructureID),
		monthSlot:  make(map[slotKey]comp.StructureID),
	}
}

// InsertStructure performs the atomic insert-if-absent on the
// (employee, effective month) slot under the store lock.
func (m *Memory) InsertStructure(_ context.Context, s *comp.CompensationStructure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{EmployeeID: s.EmployeeID, Month: s.EffectiveMonth.String()}
	if _, taken := m.monthSlot[key]; taken {
		return comp.ErrDuplicateEffectiveMonth
	}

	clone := *s
	m.structures[s.ID] = &clone
	m.monthSlot[key] = s.ID
	return nil
}

func (m *Memory) GetStructure(_ context.Context, id comp.StructureID) (*comp.CompensationStructure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id comp.StructureID) (*comp.CompensationStructure, error) {
	s, ok := m.structures[id]
	if !ok {
		return nil, comp.ErrStructureNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *Memory) MarkSubmitted(_ context.Context, id comp.StructureID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.structures[id]
	if !ok {
		return comp.ErrStructureNotFound
	}
	if s.Status != comp.StatusDraft {
		return comp.ErrNotDraft
	}
	s.Status = comp.StatusPending
	return nil
}

// MarkApproved flips the status and compare-and-sets the current pointer
// in one critical section - the in-process equivalent of the single
// database transaction the SQLite store uses.
func (m *Memory) MarkApproved(_ context.Context, id comp.StructureID, decidedBy string, at time.Time, remarks string, expectedPrevious *comp.StructureID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.structures[id]
	if !ok {
		return comp.ErrStructureNotFound
	}
	if s.Status != comp.StatusPending {
		return comp.ErrNotPending
	}

	// Pointer CAS before mutating anything.
	currentID, hasCurrent := m.current[s.EmployeeID]
	switch {
	case expectedPrevious == nil && hasCurrent:
		return comp.ErrCurrentConflict
	case expectedPrevious != nil && (!hasCurrent || currentID != *expectedPrevious):
		return comp.ErrCurrentConflict
	}

	s.Status = comp.StatusApproved
	s.DecidedBy = decidedBy
	decidedAt := at
	s.DecidedAt = &decidedAt
	if remarks != "" {
		s.Remarks = remarks
	}
	m.current[s.EmployeeID] = id
	return nil
}

func (m *Memory) MarkRejected(_ context.Context, id comp.StructureID, decidedBy string, at time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.structures[id]
	if !ok {
		return comp.ErrStructureNotFound
	}
	if s.Status != comp.StatusPending {
		return comp.ErrNotPending
	}

	s.Status = comp.StatusRejected
	s.DecidedBy = decidedBy
	decidedAt := at
	s.DecidedAt = &decidedAt
	s.RejectionReason = reason

	// Rejected structures release the (employee, month) slot so a new
	// submission can target the same month.
	delete(m.monthSlot, slotKey{EmployeeID: s.EmployeeID, Month: s.EffectiveMonth.String()})
	return nil
}

func (m *Memory) CurrentStructureID(_ context.Context, employeeID comp.EmployeeID) (*comp.StructureID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.current[employeeID]
	if !ok {
		return nil, nil
	}
	out := id
	return &out, nil
}

func (m *Memory) ListByStatus(_ context.Context, status comp.Status) ([]*comp.CompensationStructure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*comp.CompensationStructure
	for _, s := range m.structures {
		if s.Status == status {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListByEmployee(_ context.Context, employeeID comp.EmployeeID) ([]*comp.CompensationStructure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*comp.CompensationStructure
	for _, s := range m.structures {
		if s.EmployeeID == employeeID {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EffectiveMonth != out[j].EffectiveMonth {
			return out[i].EffectiveMonth.Before(out[j].EffectiveMonth)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CountByStatus(_ context.Context) (map[comp.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[comp.Status]int)
	for _, s := range m.structures {
		counts[s.Status]++
	}
	return counts, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (m *Memory) SaveCatalog(_ context.Context, configJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogJSON = configJSON
	return nil
}

func (m *Memory) LoadCatalog(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalogJSON, nil
}
