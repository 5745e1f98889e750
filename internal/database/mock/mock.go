// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/faceid/internal/database"
)

// MockStore is an in-memory database.Store keyed by user ID.
type MockStore struct {
	mu    sync.RWMutex
	users map[int64][]byte // nil value: user exists without face data
	saves int

	// Error injection
	SaveError   error
	LoadError   error
	ListError   error
	EnsureError error
	CloseError  error

	Closed bool
}

// NewMockStore creates a store containing the given users, all without face data.
func NewMockStore(userIDs ...int64) *MockStore {
	m := &MockStore{users: make(map[int64][]byte)}
	for _, id := range userIDs {
		m.users[id] = nil
	}
	return m
}

// SetFaceData stores data for a user, creating the user if needed.
func (m *MockStore) SetFaceData(userID int64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = data
}

// FaceData returns the stored data of a user without error semantics.
func (m *MockStore) FaceData(userID int64) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[userID]
}

// Saves returns how many successful SaveFaceData calls were made.
func (m *MockStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MockStore) SaveFaceData(ctx context.Context, userID int64, data []byte) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
	}
	m.users[userID] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *MockStore) LoadFaceData(ctx context.Context, userID int64) ([]byte, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, database.ErrUserNotFound)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, database.ErrNoFaceData)
	}
	return data, nil
}

func (m *MockStore) ListFaceData(ctx context.Context) ([]database.UserFaceData, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.UserFaceData
	for id, data := range m.users {
		if len(data) > 0 {
			out = append(out, database.UserFaceData{UserID: id, Data: data})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MockStore) EnsureFaceColumn(ctx context.Context) (bool, error) {
	if m.EnsureError != nil {
		return false, m.EnsureError
	}
	return false, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

var _ database.Store = (*MockStore)(nil)
