// Package session implements the worker-scoped session state used by the
// framework adapters. A Manager belongs to exactly one worker; the Store
// behind it may be shared by all workers.
package session

import (
	"errors"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/framework"
)

// DefaultName is the default name of the session cookie.
const DefaultName = "Neos_Flow_Session"

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 32
)

var (
	ErrNoSessionID    = errors.New("no session id set")
	ErrNotActive      = errors.New("session not active")
	ErrAlreadyStarted = errors.New("session already started")
)

// GenerateID returns a new random session identifier.
func GenerateID() (string, error) {
	return gonanoid.Generate(idAlphabet, idLength)
}

// Manager holds the session state of a worker. It is not safe for
// concurrent use; a worker handles one request at a time.
type Manager struct {
	name   string
	id     string
	active bool
	values map[string]any

	store Store
	log   *zap.Logger
}

var _ framework.Session = (*Manager)(nil)

// NewManager creates a session manager using the given cookie name and store.
func NewManager(name string, store Store, log *zap.Logger) *Manager {
	if name == "" {
		name = DefaultName
	}
	if store == nil {
		store = NewMemoryStore()
	}

	return &Manager{
		name:   name,
		values: make(map[string]any),
		store:  store,
		log:    log.Named("session"),
	}
}

func (m *Manager) Name() string { return m.name }

func (m *Manager) ID() string { return m.id }

// SetID sets the identifier used by the next Start.
func (m *Manager) SetID(id string) {
	m.id = id
}

// Regenerate assigns a new identifier and returns it.
func (m *Manager) Regenerate() (string, error) {
	id, err := GenerateID()
	if err != nil {
		return "", err
	}

	m.id = id
	return id, nil
}

func (m *Manager) IsActive() bool { return m.active }

// Start activates the session, creating an identifier if none is set and
// loading stored values into the cache.
func (m *Manager) Start() error {
	if m.active {
		return ErrAlreadyStarted
	}

	if m.id == "" {
		if _, err := m.Regenerate(); err != nil {
			return err
		}
	}

	values, ok := m.store.Load(m.id)
	m.values = make(map[string]any, len(values))
	if ok {
		for k, v := range values {
			m.values[k] = v
		}
	}

	m.active = true

	m.log.Debug("session started", zap.Bool("resumed", ok))

	return nil
}

// Get returns a cached session value.
func (m *Manager) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores a value in the session cache.
func (m *Manager) Set(key string, value any) error {
	if !m.active {
		return ErrNotActive
	}

	m.values[key] = value
	return nil
}

// Destroy removes the session from the store and deactivates it.
func (m *Manager) Destroy() error {
	if m.id == "" {
		return ErrNoSessionID
	}

	m.store.Delete(m.id)
	m.active = false
	m.values = make(map[string]any)

	return nil
}

// Close writes the cached values to the store and deactivates the session.
// The identifier is kept.
func (m *Manager) Close() error {
	if !m.active {
		return ErrNotActive
	}

	if m.id == "" {
		return ErrNoSessionID
	}

	snapshot := make(map[string]any, len(m.values))
	for k, v := range m.values {
		snapshot[k] = v
	}

	m.store.Save(m.id, snapshot)
	m.active = false

	return nil
}

// Reset clears the value cache.
func (m *Manager) Reset() {
	m.values = make(map[string]any)
}

// Store persists session values by identifier.
type Store interface {
	Load(id string) (map[string]any, bool)
	Save(id string, values map[string]any)
	Delete(id string)
}

// MemoryStore is a Store kept in process memory, safe for use by many workers.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]any
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]any)}
}

func (s *MemoryStore) Load(id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.sessions[id]
	return values, ok
}

func (s *MemoryStore) Save(id string, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = values
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
