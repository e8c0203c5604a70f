package store

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

const compress = false

// ChromemStore is the default VectorStore backend: an embedded chromem-go
// database persisted under a directory, holding a single named collection.
type ChromemStore struct {
	db   *chromem.DB
	name string

	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the persistent database at path and
// the named collection inside it.
func NewChromemStore(path, collectionName string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("%w: create database: %v", ErrStore, err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create/get collection: %v", ErrStore, err)
	}

	return &ChromemStore{
		db:         db,
		name:       collectionName,
		collection: collection,
	}, nil
}

func (s *ChromemStore) current() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Document,
			Metadata:  rec.Metadata,
			Embedding: rec.Embedding,
		}
	}

	if err := s.current().AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: add documents: %v", ErrStore, err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	collection := s.current()

	// chromem rejects nResults larger than the collection size.
	if n := collection.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query by embedding: %v", ErrStore, err)
	}

	matches := make([]Match, len(results))
	for i, res := range results {
		matches[i] = Match{
			Document: res.Content,
			Metadata: res.Metadata,
			Score:    res.Similarity,
		}
	}
	return matches, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.current().Count(), nil
}

// Clear deletes the collection from disk and recreates it empty, so
// persisted state is gone before the next ingestion.
func (s *ChromemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("%w: delete collection: %v", ErrStore, err)
	}
	collection, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: recreate collection: %v", ErrStore, err)
	}
	s.collection = collection
	return nil
}
