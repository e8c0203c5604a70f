package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Chunk is one overlapping slice of a document's extracted text, the unit
// that gets embedded and indexed.
type Chunk struct {
	Filename    string
	Index       int
	Content     string
	ContentType string
	IsImage     bool
}

// ID is the deterministic record identifier, so re-ingesting the same
// file overwrites its previous chunks instead of duplicating them.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(c.Filename, " ", "_"), c.Index)
}

// Metadata renders the chunk attributes stored alongside the embedding.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		"filename":     c.Filename,
		"chunk_index":  strconv.Itoa(c.Index),
		"content_type": c.ContentType,
		"is_image":     strconv.FormatBool(c.IsImage),
	}
}

// Strategy is the caller's policy for reconciling an upload with an
// already-populated retrieval store.
type Strategy int

const (
	// StrategyUnset means the caller made no choice; when the store is
	// non-empty this is surfaced back to the caller instead of guessing.
	StrategyUnset Strategy = iota
	StrategyClean
	StrategyAppend
)

// ParseStrategy validates the strategy query parameter. The empty string
// maps to StrategyUnset; anything other than "clean" or "append" is
// rejected.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "":
		return StrategyUnset, nil
	case "clean":
		return StrategyClean, nil
	case "append":
		return StrategyAppend, nil
	default:
		return StrategyUnset, fmt.Errorf("invalid strategy %q", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyClean:
		return "clean"
	case StrategyAppend:
		return "append"
	default:
		return ""
	}
}
