package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/docuchat/docuchat/internal/embedding"
	"github.com/docuchat/docuchat/internal/models"
	"github.com/docuchat/docuchat/internal/store"
)

type fakeStore struct {
	records     map[string]store.Record
	upsertCalls int
	clearCalls  int
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]store.Record)}
}

func (f *fakeStore) Upsert(_ context.Context, records []store.Record) error {
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, rec := range records {
		f.records[rec.ID] = rec
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ []float32, _ int) ([]store.Match, error) {
	return nil, nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) {
	return len(f.records), nil
}

func (f *fakeStore) Clear(_ context.Context) error {
	f.clearCalls++
	f.records = make(map[string]store.Record)
	return nil
}

type fakeEmbedder struct {
	batchCalls int
	batchSizes []int
	err        error
	errOnCall  int // 0 means every call fails when err is set
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.err != nil && (f.errOnCall == 0 || f.errOnCall == f.batchCalls) {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0, 1}, nil
}

func newTestService(t *testing.T, st store.VectorStore, emb *fakeEmbedder, maxChunkSize int) *Service {
	t.Helper()
	return NewService(st, emb, maxChunkSize, t.TempDir(), zerolog.Nop())
}

func textFile(name, content string) File {
	return File{Name: name, ContentType: "text/plain", Data: []byte(content)}
}

func TestIngestIndexesSupportedAndSkipsUnsupported(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{}
	svc := newTestService(t, st, emb, 4)

	files := []File{
		textFile("notes.txt", "abcdefghij"),
		{Name: "tool.exe", ContentType: "application/octet-stream", Data: []byte{0x4d, 0x5a}},
		{Name: "movie.mp4", ContentType: "video/mp4", Data: []byte{0x00}},
		{Name: "movie.mp4", ContentType: "video/mp4", Data: []byte{0x00}},
		{Name: "blob.bin", ContentType: "", Data: []byte{0x00}},
	}

	result, err := svc.Ingest(context.Background(), files, models.StrategyAppend)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	// "abcdefghij" at maxSize 4 chunks into abcd/defg/ghij.
	if result.ChunksIndexed != 3 {
		t.Errorf("ChunksIndexed = %d, want 3", result.ChunksIndexed)
	}
	want := []string{"blob.bin", "movie.mp4", "tool.exe"}
	if len(result.SkippedFiles) != len(want) {
		t.Fatalf("SkippedFiles = %v, want %v", result.SkippedFiles, want)
	}
	for i, name := range want {
		if result.SkippedFiles[i] != name {
			t.Errorf("SkippedFiles[%d] = %q, want %q", i, result.SkippedFiles[i], name)
		}
	}

	if emb.batchCalls != 1 {
		t.Errorf("embed batch calls = %d, want 1", emb.batchCalls)
	}
	if len(emb.batchSizes) != 1 || emb.batchSizes[0] != 3 {
		t.Errorf("embed batch sizes = %v, want [3]", emb.batchSizes)
	}
}

func TestIngestRecordIDsAndMetadata(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeEmbedder{}, 4)

	_, err := svc.Ingest(context.Background(), []File{textFile("my notes.txt", "abcdefghij")}, models.StrategyAppend)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("my_notes.txt_%d", i)
		rec, ok := st.records[id]
		if !ok {
			t.Fatalf("missing record %q, have %v", id, st.records)
		}
		if rec.Metadata["filename"] != "my notes.txt" {
			t.Errorf("filename metadata = %q", rec.Metadata["filename"])
		}
		if rec.Metadata["chunk_index"] != fmt.Sprint(i) {
			t.Errorf("chunk_index metadata = %q, want %d", rec.Metadata["chunk_index"], i)
		}
		if rec.Metadata["content_type"] != "text/plain" {
			t.Errorf("content_type metadata = %q", rec.Metadata["content_type"])
		}
		if rec.Metadata["is_image"] != "false" {
			t.Errorf("is_image metadata = %q", rec.Metadata["is_image"])
		}
	}
}

func TestIngestSanitizesDirectoryComponents(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeEmbedder{}, 100)

	_, err := svc.Ingest(context.Background(), []File{textFile("../../etc/passwd.txt", "hello")}, models.StrategyAppend)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if _, ok := st.records["passwd.txt_0"]; !ok {
		t.Errorf("expected sanitized id passwd.txt_0, have %v", st.records)
	}
}

func TestIngestReIngestOverwrites(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeEmbedder{}, 4)

	for i := 0; i < 2; i++ {
		if _, err := svc.Ingest(context.Background(), []File{textFile("notes.txt", "abcdefghij")}, models.StrategyAppend); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}

	if len(st.records) != 3 {
		t.Errorf("record count after re-ingest = %d, want 3", len(st.records))
	}
}

func TestIngestCleanClearsFirst(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeEmbedder{}, 100)

	if _, err := svc.Ingest(context.Background(), []File{textFile("old.txt", "old content")}, models.StrategyAppend); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Ingest(context.Background(), []File{textFile("new.txt", "new content")}, models.StrategyClean)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if st.clearCalls != 1 {
		t.Errorf("clear calls = %d, want 1", st.clearCalls)
	}
	if result.ChunksIndexed != 1 {
		t.Errorf("ChunksIndexed = %d, want 1", result.ChunksIndexed)
	}
	if _, ok := st.records["old.txt_0"]; ok {
		t.Error("old records survived a clean ingest")
	}
}

func TestIngestCleanWithoutFilesOnlyClears(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeEmbedder{}, 100)

	result, err := svc.Ingest(context.Background(), nil, models.StrategyClean)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if st.clearCalls != 1 {
		t.Errorf("clear calls = %d, want 1", st.clearCalls)
	}
	if result.ChunksIndexed != 0 || len(result.SkippedFiles) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestIngestEmbeddingFailureSurfaced(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{err: fmt.Errorf("%w: quota exceeded", embedding.ErrProvider)}
	svc := newTestService(t, st, emb, 100)

	result, err := svc.Ingest(context.Background(), []File{textFile("doc.txt", "content")}, models.StrategyAppend)
	if !errors.Is(err, embedding.ErrProvider) {
		t.Fatalf("Ingest() error = %v, want ErrProvider", err)
	}
	if result == nil {
		t.Fatal("Ingest() result = nil, want partial result")
	}
	if result.ChunksIndexed != 0 {
		t.Errorf("ChunksIndexed = %d, want 0", result.ChunksIndexed)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != "doc.txt" {
		t.Errorf("FailedFiles = %v, want [doc.txt]", result.FailedFiles)
	}
	if len(result.SkippedFiles) != 0 {
		t.Errorf("SkippedFiles = %v, want none", result.SkippedFiles)
	}
	if st.upsertCalls != 0 {
		t.Errorf("upsert calls = %d, want 0", st.upsertCalls)
	}
}

func TestIngestFailureDoesNotAbortSiblings(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{err: fmt.Errorf("%w: transient", embedding.ErrProvider), errOnCall: 1}
	svc := newTestService(t, st, emb, 100)

	files := []File{
		textFile("bad.txt", "first content"),
		textFile("good.txt", "second content"),
	}
	result, err := svc.Ingest(context.Background(), files, models.StrategyAppend)
	if !errors.Is(err, embedding.ErrProvider) {
		t.Fatalf("Ingest() error = %v, want ErrProvider", err)
	}
	if result.ChunksIndexed != 1 {
		t.Errorf("ChunksIndexed = %d, want 1", result.ChunksIndexed)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != "bad.txt" {
		t.Errorf("FailedFiles = %v, want [bad.txt]", result.FailedFiles)
	}
	if _, ok := st.records["good.txt_0"]; !ok {
		t.Errorf("good.txt was not indexed, have %v", st.records)
	}
}

func TestIngestSeparatesFailuresFromSkips(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{err: fmt.Errorf("%w: quota exceeded", embedding.ErrProvider)}
	svc := newTestService(t, st, emb, 100)

	files := []File{
		textFile("doc.txt", "content"),
		{Name: "tool.exe", ContentType: "application/octet-stream", Data: []byte{0x4d, 0x5a}},
	}
	result, err := svc.Ingest(context.Background(), files, models.StrategyAppend)
	if !errors.Is(err, embedding.ErrProvider) {
		t.Fatalf("Ingest() error = %v, want ErrProvider", err)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != "doc.txt" {
		t.Errorf("FailedFiles = %v, want [doc.txt]", result.FailedFiles)
	}
	if len(result.SkippedFiles) != 1 || result.SkippedFiles[0] != "tool.exe" {
		t.Errorf("SkippedFiles = %v, want [tool.exe]", result.SkippedFiles)
	}
}

func TestIngestUpsertFailureSurfaced(t *testing.T) {
	st := newFakeStore()
	st.upsertErr = fmt.Errorf("%w: connection refused", store.ErrStore)
	svc := newTestService(t, st, &fakeEmbedder{}, 100)

	result, err := svc.Ingest(context.Background(), []File{textFile("doc.txt", "content")}, models.StrategyAppend)
	if !errors.Is(err, store.ErrStore) {
		t.Fatalf("Ingest() error = %v, want ErrStore", err)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != "doc.txt" {
		t.Errorf("FailedFiles = %v, want [doc.txt]", result.FailedFiles)
	}
}

func TestIngestEmptyFileSkipped(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(t, st, &fakeEmbedder{}, 100)

	result, err := svc.Ingest(context.Background(), []File{textFile("empty.txt", "")}, models.StrategyAppend)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.ChunksIndexed != 0 {
		t.Errorf("ChunksIndexed = %d, want 0", result.ChunksIndexed)
	}
	if len(result.SkippedFiles) != 1 || result.SkippedFiles[0] != "empty.txt" {
		t.Errorf("SkippedFiles = %v, want [empty.txt]", result.SkippedFiles)
	}
}
