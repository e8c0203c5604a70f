// Package ingest orchestrates document ingestion: extract, chunk, embed,
// upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docuchat/docuchat/internal/chunker"
	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/extractor"
	"github.com/docuchat/docuchat/internal/models"
	"github.com/docuchat/docuchat/internal/store"
)

// File is one uploaded payload handed over by the boundary.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result aggregates one ingestion call. SkippedFiles names files that
// carry no indexable data (unsupported format, empty document);
// FailedFiles names files that hit an embedding-provider or store
// failure, which Ingest also reports through its error return.
type Result struct {
	ChunksIndexed int      `json:"chunks_indexed"`
	SkippedFiles  []string `json:"skipped_files"`
	FailedFiles   []string `json:"failed_files,omitempty"`
}

// Service runs the ingestion pipeline. Files within a call are processed
// independently: one file failing never aborts its siblings.
//
// A clean ingestion racing a concurrent append is an accepted race; the
// backing store tolerates interleaved clear/upsert and the upload surface
// is administrative and low-volume, so no ingestion-wide lock is taken.
type Service struct {
	store        store.VectorStore
	embedder     embedding.Embedder
	maxChunkSize int
	tempDir      string
	log          zerolog.Logger
}

func NewService(st store.VectorStore, emb embedding.Embedder, maxChunkSize int, tempDir string, log zerolog.Logger) *Service {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Service{
		store:        st,
		embedder:     emb,
		maxChunkSize: maxChunkSize,
		tempDir:      tempDir,
		log:          log,
	}
}

// Ingest processes the uploaded files under the given strategy. With
// StrategyClean the store is wiped first; a clean call with zero files
// only wipes. The caller is responsible for resolving StrategyUnset
// against a non-empty store before invoking this.
//
// Files with nothing to index are skipped and the call succeeds; an
// embedding-provider or store failure on any file makes the call return
// a non-nil error alongside the partial Result, so the caller can tell
// an upstream outage apart from an unsupported upload.
func (s *Service) Ingest(ctx context.Context, files []File, strategy models.Strategy) (*Result, error) {
	if strategy == models.StrategyClean {
		if err := s.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear store: %w", err)
		}
		s.log.Info().Msg("cleared retrieval store")
	}

	total := 0
	skipped := make(map[string]struct{})
	failed := make(map[string]struct{})
	var firstErr error

	for _, file := range files {
		count, err := s.ingestFile(ctx, file)
		if err != nil {
			name := sanitizeName(file.Name)
			if errors.Is(err, extractor.ErrUnsupportedFormat) || errors.Is(err, errEmptyDocument) {
				skipped[name] = struct{}{}
				s.log.Warn().Str("file", name).Err(err).Msg("skipping file")
			} else {
				failed[name] = struct{}{}
				if firstErr == nil {
					firstErr = err
				}
				s.log.Error().Str("file", name).Err(err).Msg("failed to ingest file")
			}
			continue
		}
		total += count
	}

	result := &Result{
		ChunksIndexed: total,
		SkippedFiles:  sortedNames(skipped),
		FailedFiles:   sortedNames(failed),
	}
	if firstErr != nil {
		return result, fmt.Errorf("ingest failed for %d file(s): %w", len(failed), firstErr)
	}
	return result, nil
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var errEmptyDocument = errors.New("document produced no chunks")

func (s *Service) ingestFile(ctx context.Context, file File) (int, error) {
	name := sanitizeName(file.Name)
	suffix := extractor.ResolveSuffix(name, file.ContentType)

	text, err := s.extractViaTempFile(file.Data, suffix)
	if err != nil {
		return 0, err
	}

	pieces, err := chunker.Split(text, s.maxChunkSize)
	if err != nil {
		return 0, err
	}
	if len(pieces) == 0 {
		return 0, errEmptyDocument
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, pieces)
	if err != nil {
		return 0, err
	}

	isImage := extractor.IsImageSuffix(suffix)
	records := make([]store.Record, len(pieces))
	for i, content := range pieces {
		chunk := models.Chunk{
			Filename:    name,
			Index:       i,
			Content:     content,
			ContentType: file.ContentType,
			IsImage:     isImage,
		}
		records[i] = store.Record{
			ID:        chunk.ID(),
			Document:  chunk.Content,
			Metadata:  chunk.Metadata(),
			Embedding: vectors[i],
		}
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		return 0, err
	}

	s.log.Debug().Str("file", name).Int("chunks", len(records)).Msg("indexed file")
	return len(records), nil
}

// extractViaTempFile spools the upload to a scoped temp file for the
// extractors, which read from disk. The file is removed whether or not
// extraction succeeds.
func (s *Service) extractViaTempFile(data []byte, suffix string) (string, error) {
	tmp, err := os.CreateTemp(s.tempDir, "upload-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return extractor.ExtractText(path, suffix)
}

// sanitizeName strips any directory component from an uploaded filename.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "uploaded"
	}
	return name
}
