/*
 * @module service/session/store
 * @description Session state: uuid-keyed sessions holding independently settable pipeline slots (raw batch, population, clean batch, dimensions, fact table)
 * @architecture In-memory store behind RW locks; sessions are isolated from each other
 * @documentReference api/controllers
 * @stateFlow create session -> load slots -> run pipeline -> read slots -> delete session
 * @rules An absent slot means the stage has not run yet, not an error; nothing is persisted across restarts
 * @dependencies sync, time, github.com/google/uuid
 * @refs api/controllers/session_controller.go, api/controllers/pipeline_controller.go
 */

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Slot names exposed to the UI layer.
const (
	SlotDataset         = "dataset"
	SlotRawBatch        = "raw_batch"
	SlotPopulationBatch = "population_batch"
	SlotCleanBatch      = "clean_batch"
	SlotCleanStats      = "clean_stats"
	SlotEnrichment      = "enrichment"
	SlotTimeDimension   = "time_dimension"
	SlotGeoDimension    = "geo_dimension"
	SlotFactTable       = "fact_table"
	SlotFactStats       = "fact_stats"
)

// Session is one user's pipeline state. Slots are set and read individually;
// re-running the pipeline replaces the derived slots of the prior run.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	updatedAt time.Time
	slots     map[string]interface{}
}

// Set stores a slot value.
func (s *Session) Set(name string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[name] = value
	s.updatedAt = time.Now()
}

// Get reads a slot value. ok is false when the stage has not run yet.
func (s *Session) Get(name string) (value interface{}, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok = s.slots[name]
	return value, ok
}

// ClearDerived removes every slot produced by a pipeline run, keeping the
// loaded input batches.
func (s *Session) ClearDerived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range []string{
		SlotCleanBatch, SlotCleanStats, SlotEnrichment,
		SlotTimeDimension, SlotGeoDimension, SlotFactTable, SlotFactStats,
	} {
		delete(s.slots, name)
	}
	s.updatedAt = time.Now()
}

// Status reports which slots are set.
func (s *Session) Status() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := make(map[string]bool, len(s.slots))
	for _, name := range []string{
		SlotDataset, SlotRawBatch, SlotPopulationBatch, SlotCleanBatch,
		SlotTimeDimension, SlotGeoDimension, SlotFactTable,
	} {
		_, ok := s.slots[name]
		status[name] = ok
	}
	return status
}

// UpdatedAt returns the last slot mutation time.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Manager owns all live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a new session with a generated id.
func (m *Manager) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		updatedAt: now,
		slots:     make(map[string]interface{}),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session and reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
