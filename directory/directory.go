/*
Package directory is the read-only employee directory collaborator.

PURPOSE:
  The compensation engine consumes employee records from an external
  directory: id, name, department, designation, and the existing annual
  salary used to pre-fill the target CTC in the submission UI. The engine
  never writes to the directory.

  The in-memory implementation here is the integration seam: production
  deployments swap in an adapter over the real directory service without
  the engine noticing.
*/
package directory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/warp/comp-engine/comp"
)

// ErrEmployeeNotFound is returned when an employee id is unknown.
var ErrEmployeeNotFound = errors.New("employee not found")

// Employee is the directory record the engine consumes.
type Employee struct {
	ID          comp.EmployeeID `json:"id"`
	Name        string          `json:"name"`
	Department  string          `json:"department"`
	Designation string          `json:"designation"`

	// ExistingAnnualSalary pre-fills the target CTC for a new submission.
	// Nil for new joiners with no salary on record.
	ExistingAnnualSalary *comp.Money `json:"existing_annual_salary,omitempty"`
}

// Directory is the read-only lookup interface.
type Directory interface {
	Get(ctx context.Context, id comp.EmployeeID) (*Employee, error)
	List(ctx context.Context) ([]*Employee, error)
}

// =============================================================================
// MEMORY DIRECTORY
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[comp.EmployeeID]*Employee
}

func NewMemory(employees ...*Employee) *Memory {
	m := &Memory{employees: make(map[comp.EmployeeID]*Employee, len(employees))}
	for _, e := range employees {
		clone := *e
		m.employees[e.ID] = &clone
	}
	return m
}

func (m *Memory) Get(_ context.Context, id comp.EmployeeID) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *Memory) List(_ context.Context) ([]*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Employee, 0, len(m.employees))
	for _, e := range m.employees {
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
