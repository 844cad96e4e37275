// Package redis provides Redis-backed memory.Store and
// memory.ConversationStore implementations.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rds "github.com/redis/go-redis/v9"

	"github.com/amuslera/bluelabel-aios/memory"
)

// Store implements memory.Store on Redis with JSON-encoded values
type Store struct {
	client *rds.Client
	ttl    time.Duration
	prefix string
}

// NewStore creates a Redis-backed store. A zero ttl keeps keys forever.
func NewStore(client *rds.Client, ttl time.Duration, prefix string) *Store {
	return &Store{client: client, ttl: ttl, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Set implements memory.Store
func (s *Store) Set(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), b, s.ttl).Err()
}

// Get implements memory.Store
func (s *Store) Get(ctx context.Context, key string) (interface{}, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return nil, fmt.Errorf("key %s not found", key)
		}
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements memory.Store
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Keys implements memory.Store
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	pattern := "*"
	if s.prefix != "" {
		pattern = s.prefix + ":*"
	}

	var cursor uint64
	keys := []string{}
	for {
		ks, cur, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks...)
		if cur == 0 {
			break
		}
		cursor = cur
	}
	return keys, nil
}

// Clear implements memory.Store
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// ConversationStore implements memory.ConversationStore on Redis lists so
// entries keep append order without read-modify-write races
type ConversationStore struct {
	Store
}

// NewConversationStore creates a Redis-backed conversation store
func NewConversationStore(client *rds.Client, ttl time.Duration, prefix string) *ConversationStore {
	return &ConversationStore{Store: Store{client: client, ttl: ttl, prefix: prefix}}
}

func (cs *ConversationStore) sessionKey(sessionID string) string {
	return cs.key("session:" + sessionID)
}

// AppendEntry implements memory.ConversationStore
func (cs *ConversationStore) AppendEntry(ctx context.Context, sessionID, role, content string) error {
	b, err := json.Marshal(memory.Entry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	key := cs.sessionKey(sessionID)
	if err := cs.client.RPush(ctx, key, b).Err(); err != nil {
		return err
	}
	if cs.ttl > 0 {
		return cs.client.Expire(ctx, key, cs.ttl).Err()
	}
	return nil
}

// Entries implements memory.ConversationStore
func (cs *ConversationStore) Entries(ctx context.Context, sessionID string) ([]memory.Entry, error) {
	raw, err := cs.client.LRange(ctx, cs.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]memory.Entry, 0, len(raw))
	for _, item := range raw {
		var e memory.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode entry for session %s: %w", sessionID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ClearSession implements memory.ConversationStore
func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	return cs.client.Del(ctx, cs.sessionKey(sessionID)).Err()
}

var _ memory.Store = (*Store)(nil)
var _ memory.ConversationStore = (*ConversationStore)(nil)
