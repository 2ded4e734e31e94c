// Package memory keeps drivers, salaries and the audit trail in process
// memory. It backs STORAGE_TYPE=memory and the service and handler tests.
package memory

import (
	"context"
	"sync"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/google/uuid"
)

type txKey struct{}

// Store is shared by the memory repositories. Writes are serialized; reads
// run concurrently.
type Store struct {
	mu sync.RWMutex
	// holds one token; taking it grants the transaction
	txSem chan struct{}

	drivers  map[string]driver.Driver
	trips    []driver.Trip
	entries  []driver.DiurnaEntry
	holidays []driver.Holiday

	salaries map[string]salary.Salary
	audit    []audit.Entry
}

func NewStore() *Store {
	return &Store{
		txSem:    make(chan struct{}, 1),
		drivers:  make(map[string]driver.Driver),
		salaries: make(map[string]salary.Salary),
	}
}

// WithinTransaction runs fn with exclusive write access. If fn fails, every
// salary and audit write made inside it is undone. Nested calls join the
// outer transaction. Waiting for another transaction stops when ctx is done.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSem }()

	s.mu.RLock()
	salaries := make(map[string]salary.Salary, len(s.salaries))
	for id, sal := range s.salaries {
		salaries[id] = sal.Clone()
	}
	auditLen := len(s.audit)
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.salaries = salaries
		s.audit = s.audit[:auditLen]
		s.mu.Unlock()
		return err
	}
	return nil
}

// write runs a single write under the transaction lock unless ctx already
// holds it.
func (s *Store) write(ctx context.Context, fn func() error) error {
	return s.WithinTransaction(ctx, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn()
	})
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// ========== SEEDING ==========

func (s *Store) AddDriver(d driver.Driver) driver.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.drivers[d.ID] = d
	return d
}

// SetDriverActive toggles a driver's active flag.
func (s *Store) SetDriverActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drivers[id]; ok {
		d.Active = active
		s.drivers[id] = d
	}
}

func (s *Store) AddTrip(t driver.Trip) driver.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.trips = append(s.trips, t)
	return t
}

func (s *Store) AddDiurnaEntry(e driver.DiurnaEntry) driver.DiurnaEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.entries = append(s.entries, e)
	return e
}

func (s *Store) AddHoliday(h driver.Holiday) driver.Holiday {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	s.holidays = append(s.holidays, h)
	return h
}
