package task

import (
	"errors"
	"sync"
)

var (
	ErrDuplicateTask = errors.New("task with this ID already exists")
	ErrTaskNotFound  = errors.New("no task found with this ID")
)

// Handle is a live, in-flight task: its record plus a cancel function
// that flags the underlying execution for cooperative cancellation.
type Handle struct {
	Record *Record
	Cancel func()
}

// Manager is the in-memory registry of in-flight tasks. Terminal tasks
// are removed from the manager and survive only in the Store.
type Manager struct {
	tasks map[string]*Handle
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		tasks: make(map[string]*Handle),
	}
}

func (m *Manager) Add(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[h.Record.ID]; exists {
		return ErrDuplicateTask
	}

	m.tasks[h.Record.ID] = h
	return nil
}

func (m *Manager) Get(taskID string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, exists := m.tasks[taskID]
	if !exists {
		return nil, ErrTaskNotFound
	}

	return h, nil
}

func (m *Manager) Remove(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[taskID]; !exists {
		return ErrTaskNotFound
	}

	delete(m.tasks, taskID)
	return nil
}

func (m *Manager) All() map[string]*Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make(map[string]*Handle, len(m.tasks))
	for id, h := range m.tasks {
		copied[id] = h
	}

	return copied
}
