// Package inmemory provides process-local memory.Store and
// memory.ConversationStore implementations.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amuslera/bluelabel-aios/memory"
)

// Store implements memory.Store in process memory
type Store struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{data: make(map[string]interface{})}
}

// Set implements memory.Store
func (s *Store) Set(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Get implements memory.Store
func (s *Store) Get(ctx context.Context, key string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.data[key]
	if !exists {
		return nil, fmt.Errorf("key %s not found", key)
	}
	return value, nil
}

// Delete implements memory.Store
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys implements memory.Store
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Clear implements memory.Store
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]interface{})
	return nil
}

// ConversationStore implements memory.ConversationStore in process memory
type ConversationStore struct {
	Store
	mu       sync.RWMutex
	sessions map[string][]memory.Entry
}

// NewConversationStore creates an empty in-memory conversation store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		Store:    Store{data: make(map[string]interface{})},
		sessions: make(map[string][]memory.Entry),
	}
}

// AppendEntry implements memory.ConversationStore
func (cs *ConversationStore) AppendEntry(ctx context.Context, sessionID, role, content string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sessions[sessionID] = append(cs.sessions[sessionID], memory.Entry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// Entries implements memory.ConversationStore
func (cs *ConversationStore) Entries(ctx context.Context, sessionID string) ([]memory.Entry, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	entries := cs.sessions[sessionID]
	out := make([]memory.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// ClearSession implements memory.ConversationStore
func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.sessions, sessionID)
	return nil
}

var _ memory.Store = (*Store)(nil)
var _ memory.ConversationStore = (*ConversationStore)(nil)
