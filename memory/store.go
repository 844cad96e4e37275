// Package memory defines the storage collaborator contracts agents depend
// on. The core owns no schema or wire format; implementations here are
// supporting infrastructure and callers may substitute their own.
package memory

import "context"

// Store is a generic keyed state store for agent scratch data
type Store interface {
	// Set saves a value under key
	Set(ctx context.Context, key string, value interface{}) error

	// Get returns the value under key
	Get(ctx context.Context, key string) (interface{}, error)

	// Delete removes the value under key
	Delete(ctx context.Context, key string) error

	// Keys returns all stored keys
	Keys(ctx context.Context) ([]string, error)

	// Clear removes all stored data
	Clear(ctx context.Context) error
}

// Entry is one item in a session's ordered history
type Entry struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ConversationStore keeps ordered per-session histories
type ConversationStore interface {
	Store

	// AppendEntry adds an entry to the session history
	AppendEntry(ctx context.Context, sessionID, role, content string) error

	// Entries returns the session history in append order
	Entries(ctx context.Context, sessionID string) ([]Entry, error)

	// ClearSession removes all entries for a session
	ClearSession(ctx context.Context, sessionID string) error
}

// Document is a stored text with its embedding
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float64         `json:"embedding,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Score     float64           `json:"score,omitempty"` // Similarity score on query results
}

// VectorStore persists embeddings for similarity retrieval
type VectorStore interface {
	// AddDocument stores a document with its embedding
	AddDocument(ctx context.Context, id, content string, embedding []float64) error

	// QuerySimilar returns up to limit documents nearest the query embedding
	QuerySimilar(ctx context.Context, queryEmbedding []float64, limit int) ([]Document, error)

	// DeleteDocument removes a document by ID
	DeleteDocument(ctx context.Context, id string) error

	// GetDocument fetches a document by ID
	GetDocument(ctx context.Context, id string) (*Document, error)
}
