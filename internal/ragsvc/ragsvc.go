// Package ragsvc answers questions over the indexed documents: embed the
// question, retrieve top-k chunks, prompt the chat model with them.
package ragsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/llmservice"
	"github.com/docuchat/docuchat/internal/models"
	"github.com/docuchat/docuchat/internal/store"
)

// Status distinguishes a produced answer from the two expected
// empty-result states. Upstream failures are returned as errors, not
// statuses.
type Status int

const (
	StatusOK Status = iota
	// StatusNotIndexed: the store is empty; no external call was made.
	StatusNotIndexed
	// StatusNoContext: retrieval returned no matches for the question.
	StatusNoContext
)

// Result is the orchestrator's answer. Sources carries the ranked
// matches verbatim, best first.
type Result struct {
	Status  Status
	Answer  string
	Sources []store.Match
}

type Service struct {
	store     store.VectorStore
	embedder  embedding.Embedder
	completer llmservice.Completer
	topK      int
	log       zerolog.Logger
}

func NewService(st store.VectorStore, emb embedding.Embedder, completer llmservice.Completer, topK int, log zerolog.Logger) *Service {
	return &Service{
		store:     st,
		embedder:  emb,
		completer: completer,
		topK:      topK,
		log:       log,
	}
}

// Answer runs the linear retrieval state machine for one question.
func (s *Service) Answer(ctx context.Context, question string) (*Result, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return &Result{Status: StatusNotIndexed}, nil
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.Query(ctx, queryVector, s.topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &Result{Status: StatusNoContext}, nil
	}

	prompt := fmt.Sprintf(models.RAGPromptTemplate, formatContext(matches), question)

	answer, err := s.completer.Complete(ctx, models.SystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Int("sources", len(matches)).Msg("answered question")
	return &Result{Status: StatusOK, Answer: answer, Sources: matches}, nil
}

// formatContext renders the matches into labeled blocks in store order,
// which is best-first.
func formatContext(matches []store.Match) string {
	blocks := make([]string, len(matches))
	for i, match := range matches {
		filename := match.Metadata["filename"]
		if filename == "" {
			filename = "unknown"
		}
		blocks[i] = fmt.Sprintf(models.ContextBlockTemplate, filename, match.Metadata["chunk_index"], match.Document)
	}
	return strings.Join(blocks, "\n\n")
}
