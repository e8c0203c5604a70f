package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// embeddingRow is the bun model backing the pgvector table. The
// embedding column holds the pgvector literal ("[1,2,3]"); its column
// type is set at table creation from the configured dimension.
type embeddingRow struct {
	bun.BaseModel `bun:"table:embeddings,alias:e"`
	ID            string  `bun:"id,pk"`
	Document      string  `bun:"document,notnull"`
	Filename      string  `bun:"filename,notnull"`
	ChunkIndex    int     `bun:"chunk_index,notnull"`
	ContentType   string  `bun:"content_type"`
	IsImage       bool    `bun:"is_image"`
	Embedding     string  `bun:"embedding,notnull"`
	Distance      float64 `bun:"distance,scanonly"`
}

// PostgresStore is the pgvector-backed VectorStore, selected with
// store.type "postgres". Native ordering is cosine distance; scores are
// converted to similarity so both backends rank and report identically.
type PostgresStore struct {
	db  *bun.DB
	dim int
}

// NewPostgresStore connects to the DSN and ensures the embeddings table
// exists. dimension is the vector column width and must match the
// embedding model's output size.
func NewPostgresStore(ctx context.Context, dsn string, dimension int, debug bool) (*PostgresStore, error) {
	if dimension < 1 {
		return nil, fmt.Errorf("%w: vector dimension must be at least 1, got %d", ErrStore, dimension)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	s := &PostgresStore{db: db, dim: dimension}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, embeddingsDDL(s.dim)); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrStore, err)
	}
	return nil
}

// embeddingsDDL builds the table definition; bun's create-table builder
// cannot parameterize the vector column width, so the DDL is assembled
// here.
func embeddingsDDL(dim int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
	id text PRIMARY KEY,
	document text NOT NULL,
	filename text NOT NULL,
	chunk_index integer NOT NULL,
	content_type text,
	is_image boolean,
	embedding vector(%d) NOT NULL
)`, dim)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]embeddingRow, len(records))
	for i, rec := range records {
		rows[i] = embeddingRow{
			ID:          rec.ID,
			Document:    rec.Document,
			Filename:    rec.Metadata["filename"],
			ContentType: rec.Metadata["content_type"],
			Embedding:   vectorLiteral(rec.Embedding),
		}
		rows[i].ChunkIndex, _ = strconv.Atoi(rec.Metadata["chunk_index"])
		rows[i].IsImage = rec.Metadata["is_image"] == "true"
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("document = EXCLUDED.document").
		Set("filename = EXCLUDED.filename").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("content_type = EXCLUDED.content_type").
		Set("is_image = EXCLUDED.is_image").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrStore, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	literal := vectorLiteral(embedding)

	var rows []embeddingRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("e.id, e.document, e.filename, e.chunk_index, e.content_type, e.is_image").
		ColumnExpr("embedding <=> ?::vector AS distance", literal).
		OrderExpr("embedding <=> ?::vector", literal).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStore, err)
	}

	matches := make([]Match, len(rows))
	for i, row := range rows {
		matches[i] = Match{
			Document: row.Document,
			Metadata: map[string]string{
				"filename":     row.Filename,
				"chunk_index":  strconv.Itoa(row.ChunkIndex),
				"content_type": row.ContentType,
				"is_image":     strconv.FormatBool(row.IsImage),
			},
			// cosine distance in [0, 2] -> similarity in [-1, 1]
			Score: float32(1 - row.Distance),
		}
	}
	return matches, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*embeddingRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStore, err)
	}
	return count, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.NewDropTable().Model((*embeddingRow)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("%w: drop table: %v", ErrStore, err)
	}
	return s.init(ctx)
}

// vectorLiteral renders a pgvector input literal; the JSON encoding of a
// float slice is the same "[x,y,z]" form pgvector parses.
func vectorLiteral(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}
