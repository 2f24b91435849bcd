// Package registry stores employee records in a JSON file keyed by employee
// ID. The file is the durable source of truth; every mutation rewrites it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrExists is returned when registering an employee ID that is taken.
	ErrExists = errors.New("employee already registered")
	// ErrNotFound is returned when an employee ID is unknown.
	ErrNotFound = errors.New("employee not found")
	// ErrNameTaken is returned when another employee already uses the name.
	// Names must be unique because the face gallery resolves identities by
	// name, not by ID.
	ErrNameTaken = errors.New("employee name already in use")
)

// Employee is one registered employee.
type Employee struct {
	ID               string `json:"emp_id"`
	Name             string `json:"name"`
	Department       string `json:"department"`
	Position         string `json:"position"`
	RegistrationDate string `json:"registration_date"`
}

// diskEmployee is the per-entry shape of the registry file. The employee ID
// is the map key, so it is not repeated in the value.
type diskEmployee struct {
	Name             string `json:"name"`
	Department       string `json:"department"`
	Position         string `json:"position"`
	RegistrationDate string `json:"registration_date"`
}

// Registry is a thread safe employee directory backed by a JSON file.
type Registry struct {
	mu        sync.RWMutex
	path      string
	employees map[string]Employee
	now       func() time.Time
}

// Open loads the registry from path, creating an empty registry when the
// file does not exist yet.
func Open(path string) (*Registry, error) {
	r := &Registry{
		path:      path,
		employees: make(map[string]Employee),
		now:       time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read employee file: %w", err)
	}

	var onDisk map[string]diskEmployee
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("failed to parse employee file: %w", err)
	}

	for id, d := range onDisk {
		r.employees[id] = Employee{
			ID:               id,
			Name:             d.Name,
			Department:       d.Department,
			Position:         d.Position,
			RegistrationDate: d.RegistrationDate,
		}
	}

	return r, nil
}

// Add registers a new employee. The registration date is stamped by the
// registry. Both the ID and the name must be unused.
func (r *Registry) Add(id, name, department, position string) (Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.employees[id]; ok {
		return Employee{}, ErrExists
	}
	for _, e := range r.employees {
		if e.Name == name {
			return Employee{}, ErrNameTaken
		}
	}

	emp := Employee{
		ID:               id,
		Name:             name,
		Department:       department,
		Position:         position,
		RegistrationDate: r.now().Format("2006-01-02"),
	}
	r.employees[id] = emp

	if err := r.persist(); err != nil {
		delete(r.employees, id)
		return Employee{}, err
	}
	return emp, nil
}

// Get returns the employee with the given ID.
func (r *Registry) Get(id string) (Employee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.employees[id]
	return e, ok
}

// GetByName returns the employee with the given name. Names are unique, so
// the first hit is the only hit.
func (r *Registry) GetByName(name string) (Employee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.employees {
		if e.Name == name {
			return e, true
		}
	}
	return Employee{}, false
}

// List returns all employees sorted by ID.
func (r *Registry) List() []Employee {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Employee, 0, len(r.employees))
	for _, e := range r.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered employees.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.employees)
}

// Remove deletes an employee and returns the removed record so the caller
// can clean up the face gallery entry for that name.
func (r *Registry) Remove(id string) (Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emp, ok := r.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}

	delete(r.employees, id)
	if err := r.persist(); err != nil {
		r.employees[id] = emp
		return Employee{}, err
	}
	return emp, nil
}

// persist rewrites the registry file. Callers must hold the write lock.
func (r *Registry) persist() error {
	onDisk := make(map[string]diskEmployee, len(r.employees))
	for id, e := range r.employees {
		onDisk[id] = diskEmployee{
			Name:             e.Name,
			Department:       e.Department,
			Position:         e.Position,
			RegistrationDate: e.RegistrationDate,
		}
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode employee file: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create employee directory: %w", err)
		}
	}

	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write employee file: %w", err)
	}
	return nil
}
