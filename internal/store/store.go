// Package store provides the persistent vector index behind ingestion and
// retrieval.
package store

import (
	"context"
	"errors"
)

// ErrStore wraps failures of the backing vector store.
var ErrStore = errors.New("vector store error")

// Record is the persisted unit: one embedded chunk with its metadata.
// IDs are deterministic per source file and chunk index, so re-ingesting
// a file overwrites its prior records instead of duplicating them.
type Record struct {
	ID        string            `json:"id"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"embedding"`
}

// Match is a ranked retrieval result. Score is cosine similarity: higher
// is better, regardless of backend. Backends whose native convention is a
// distance convert before returning.
type Match struct {
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// VectorStore is the contract the ingestion and retrieval orchestrators
// program against. Implementations must tolerate concurrent upserts and
// queries from multiple in-flight requests.
type VectorStore interface {
	// Upsert inserts records, overwriting any existing record with the
	// same id.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK matches ranked best-first.
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Clear irreversibly removes all records. Idempotent when already
	// empty.
	Clear(ctx context.Context) error
}
