// Package pgvector provides a memory.VectorStore backed by Postgres with the
// pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amuslera/bluelabel-aios/memory"
)

// Store implements memory.VectorStore on a pgvector table.
//
// Expected schema:
//
//	CREATE EXTENSION IF NOT EXISTS vector;
//	CREATE TABLE IF NOT EXISTS documents (
//	  id text PRIMARY KEY,
//	  content text NOT NULL,
//	  embedding vector(1536)
//	);
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a pgvector store over the given pool
func New(pool *pgxpool.Pool, table string) *Store {
	if table == "" {
		table = "documents"
	}
	return &Store{pool: pool, table: table}
}

// vectorLiteral renders an embedding in pgvector's input format
func vectorLiteral(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// AddDocument implements memory.VectorStore
func (s *Store) AddDocument(ctx context.Context, id, content string, embedding []float64) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (id, content, embedding) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding", s.table),
		id, content, vectorLiteral(embedding))
	return err
}

// QuerySimilar implements memory.VectorStore using cosine distance
func (s *Store) QuerySimilar(ctx context.Context, queryEmbedding []float64, limit int) ([]memory.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT id, content, embedding <=> $1 AS score FROM %s ORDER BY embedding <=> $1 ASC LIMIT $2", s.table),
		vectorLiteral(queryEmbedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]memory.Document, 0, limit)
	for rows.Next() {
		var doc memory.Document
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Score); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteDocument implements memory.VectorStore
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
	return err
}

// GetDocument implements memory.VectorStore
func (s *Store) GetDocument(ctx context.Context, id string) (*memory.Document, error) {
	var doc memory.Document
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT id, content FROM %s WHERE id = $1", s.table), id,
	).Scan(&doc.ID, &doc.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

var _ memory.VectorStore = (*Store)(nil)
