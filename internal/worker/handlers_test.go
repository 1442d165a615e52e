package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/modelrunner"
	"github.com/shaiso/mcp-worker/internal/repo"
	"github.com/shaiso/mcp-worker/internal/telemetry"
	"github.com/shaiso/mcp-worker/internal/vectorstore"
)

// --- VectorIndexHandler ---

type fakeVectorStore struct {
	collections map[string]int
	points      map[string][]vectorstore.Point
	failUpsert  error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		collections: map[string]int{},
		points:      map[string][]vectorstore.Point{},
	}
}

func (s *fakeVectorStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	s.collections[name] = vectorSize
	return nil
}

func (s *fakeVectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if s.failUpsert != nil {
		return s.failUpsert
	}
	s.points[collection] = append(s.points[collection], points...)
	return nil
}

type fakeEmbedder struct {
	model string
	calls int
}

func (e *fakeEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	e.model = model
	e.calls++
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{float64(len(texts[i])), 0.5}
	}
	return vectors, nil
}

func TestVectorIndexHandler_IndexesDocuments(t *testing.T) {
	store := newFakeVectorStore()
	handler := NewVectorIndexHandler(store, nil, nil)

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"collection":  "docs",
		"vector_size": float64(4),
		"documents": []any{
			map[string]any{
				"id":       "doc-1",
				"vector":   []any{0.1, 0.2, 0.3, 0.4},
				"metadata": map[string]any{"title": "first"},
			},
			map[string]any{
				"id":     "doc-2",
				"vector": []any{0.5, 0.6, 0.7, 0.8},
			},
		},
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["indexed"] != 2 {
		t.Errorf("expected indexed=2, got %v", result.Outputs["indexed"])
	}
	if store.collections["docs"] != 4 {
		t.Errorf("expected collection with vector size 4, got %d", store.collections["docs"])
	}
	if len(store.points["docs"]) != 2 {
		t.Fatalf("expected 2 points, got %d", len(store.points["docs"]))
	}
	if store.points["docs"][0].Payload["title"] != "first" {
		t.Errorf("expected metadata on first point, got %v", store.points["docs"][0].Payload)
	}
}

func TestVectorIndexHandler_EmbedsTextDocuments(t *testing.T) {
	store := newFakeVectorStore()
	embedder := &fakeEmbedder{}
	handler := NewVectorIndexHandler(store, embedder, nil)

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"collection":      "docs",
		"embedding_model": "nomic-embed-text",
		"documents": []any{
			map[string]any{"id": "doc-1", "text": "hello"},
			map[string]any{"id": "doc-2", "vector": []any{0.1, 0.2}},
			map[string]any{"id": "doc-3", "text": "world!"},
		},
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["indexed"] != 3 {
		t.Errorf("expected indexed=3, got %v", result.Outputs["indexed"])
	}
	if embedder.calls != 1 {
		t.Errorf("expected a single embed call, got %d", embedder.calls)
	}
	if embedder.model != "nomic-embed-text" {
		t.Errorf("expected embedding model from payload, got %q", embedder.model)
	}

	points := store.points["docs"]
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	// "hello" — 5 символов, вектор от fakeEmbedder начинается с длины
	if points[0].Vector[0] != 5 {
		t.Errorf("expected embedded vector for doc-1, got %v", points[0].Vector)
	}
}

func TestVectorIndexHandler_TextWithoutEmbedder(t *testing.T) {
	handler := NewVectorIndexHandler(newFakeVectorStore(), nil, nil)

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"collection": "docs",
		"documents": []any{
			map[string]any{"id": "doc-1", "text": "hello"},
		},
	})

	_, err := handler.Execute(context.Background(), task)
	if !IsNonRetryable(err) {
		t.Errorf("text document without embedder must be non-retryable, got %v", err)
	}
}

func TestVectorIndexHandler_BatchesUpserts(t *testing.T) {
	store := newFakeVectorStore()
	handler := NewVectorIndexHandler(store, nil, nil)

	docs := make([]any, 5)
	for i := range docs {
		docs[i] = map[string]any{
			"id":     fmt.Sprintf("doc-%d", i),
			"vector": []any{0.1, 0.2},
		}
	}

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"collection": "docs",
		"batch_size": float64(2),
		"documents":  docs,
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["batches"] != 3 {
		t.Errorf("expected 3 batches of size 2 for 5 documents, got %v", result.Outputs["batches"])
	}
	if len(store.points["docs"]) != 5 {
		t.Errorf("expected all 5 points upserted, got %d", len(store.points["docs"]))
	}
}

func TestVectorIndexHandler_DeterministicPointIDs(t *testing.T) {
	a := pointID("docs", "doc-1")
	b := pointID("docs", "doc-1")
	c := pointID("docs", "doc-2")
	d := pointID("other", "doc-1")

	if a != b {
		t.Errorf("same (collection, doc) must map to same point id: %s != %s", a, b)
	}
	if a == c || a == d {
		t.Errorf("different documents must map to different point ids")
	}
}

func TestVectorIndexHandler_MissingCollection(t *testing.T) {
	handler := NewVectorIndexHandler(newFakeVectorStore(), nil, nil)

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"documents": []any{},
	})

	_, err := handler.Execute(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for missing collection")
	}
	if !IsNonRetryable(err) {
		t.Errorf("malformed payload must be non-retryable, got %v", err)
	}
}

func TestVectorIndexHandler_MalformedDocument(t *testing.T) {
	handler := NewVectorIndexHandler(newFakeVectorStore(), nil, nil)

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"collection": "docs",
		"documents": []any{
			map[string]any{"id": "doc-1"}, // ни vector, ни text
		},
	})

	_, err := handler.Execute(context.Background(), task)
	if !IsNonRetryable(err) {
		t.Errorf("document without vector must be non-retryable, got %v", err)
	}
}

func TestVectorIndexHandler_UpsertFailureIsRetryable(t *testing.T) {
	store := newFakeVectorStore()
	store.failUpsert = fmt.Errorf("connection refused")
	handler := NewVectorIndexHandler(store, nil, nil)

	task := domain.NewTask("", TaskTypeVectorIndex, map[string]any{
		"collection": "docs",
		"documents": []any{
			map[string]any{"id": "doc-1", "vector": []any{0.1}},
		},
	})

	_, err := handler.Execute(context.Background(), task)
	if err == nil {
		t.Fatal("expected upsert error")
	}
	if IsNonRetryable(err) {
		t.Errorf("infrastructure failure must stay retryable, got %v", err)
	}
}

// --- ModelCacheHandler ---

type fakeModelCache struct {
	models    map[string]bool
	preloaded []string
	evicted   []string
}

func (c *fakeModelCache) HasModel(ctx context.Context, model string) (bool, error) {
	return c.models[model], nil
}

func (c *fakeModelCache) Preload(ctx context.Context, model string) error {
	c.preloaded = append(c.preloaded, model)
	return nil
}

func (c *fakeModelCache) Evict(ctx context.Context, model string) error {
	c.evicted = append(c.evicted, model)
	return nil
}

func TestModelCacheHandler_Preload(t *testing.T) {
	cache := &fakeModelCache{models: map[string]bool{"llama3": true}}
	handler := NewModelCacheHandler(cache, nil)

	task := domain.NewTask("", TaskTypeModelCache, map[string]any{
		"model_id": "llama3",
		"priority": "high",
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["operation"] != OpPreload {
		t.Errorf("expected default operation preload, got %v", result.Outputs["operation"])
	}
	if result.Outputs["priority"] != "high" {
		t.Errorf("expected priority passthrough, got %v", result.Outputs["priority"])
	}
	if len(cache.preloaded) != 1 || cache.preloaded[0] != "llama3" {
		t.Errorf("expected llama3 preloaded, got %v", cache.preloaded)
	}
}

func TestModelCacheHandler_LegacyModelKey(t *testing.T) {
	cache := &fakeModelCache{models: map[string]bool{"llama3": true}}
	handler := NewModelCacheHandler(cache, nil)

	task := domain.NewTask("", TaskTypeModelCache, map[string]any{
		"model": "llama3",
	})

	if _, err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.preloaded) != 1 {
		t.Errorf("expected llama3 preloaded via legacy key, got %v", cache.preloaded)
	}
}

func TestModelCacheHandler_Evict(t *testing.T) {
	cache := &fakeModelCache{models: map[string]bool{"llama3": true}}
	handler := NewModelCacheHandler(cache, nil)

	task := domain.NewTask("", TaskTypeModelCache, map[string]any{
		"model_id":  "llama3",
		"operation": OpEvict,
	})

	if _, err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.evicted) != 1 {
		t.Errorf("expected llama3 evicted, got %v", cache.evicted)
	}
}

func TestModelCacheHandler_UnknownModelNonRetryable(t *testing.T) {
	cache := &fakeModelCache{models: map[string]bool{}}
	handler := NewModelCacheHandler(cache, nil)

	task := domain.NewTask("", TaskTypeModelCache, map[string]any{
		"model_id": "no-such-model",
	})

	_, err := handler.Execute(context.Background(), task)
	if !errors.Is(err, modelrunner.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if !IsNonRetryable(err) {
		t.Errorf("unknown model must be non-retryable")
	}
}

func TestModelCacheHandler_UnknownOperation(t *testing.T) {
	cache := &fakeModelCache{models: map[string]bool{"llama3": true}}
	handler := NewModelCacheHandler(cache, nil)

	task := domain.NewTask("", TaskTypeModelCache, map[string]any{
		"model_id":  "llama3",
		"operation": "defrag",
	})

	_, err := handler.Execute(context.Background(), task)
	if !IsNonRetryable(err) {
		t.Errorf("unknown operation must be non-retryable, got %v", err)
	}
}

// --- DataCleanupHandler ---

type fakeCleanupStore struct {
	// counts[category] — записи старше любого разумного cutoff
	counts  map[string]int64
	deleted map[string]time.Time
}

func (s *fakeCleanupStore) Categories() []string {
	return []string{"chat_sessions", "task_audit"}
}

func (s *fakeCleanupStore) CountOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	n, ok := s.counts[category]
	if !ok {
		return 0, fmt.Errorf("%w: %s", repo.ErrUnknownCategory, category)
	}
	return n, nil
}

func (s *fakeCleanupStore) DeleteOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	n, err := s.CountOlderThan(ctx, category, cutoff)
	if err != nil {
		return 0, err
	}
	if s.deleted == nil {
		s.deleted = map[string]time.Time{}
	}
	s.deleted[category] = cutoff
	s.counts[category] = 0
	return n, nil
}

func TestDataCleanupHandler_CutoffFromThreshold(t *testing.T) {
	store := &fakeCleanupStore{counts: map[string]int64{"chat_sessions": 5, "task_audit": 2}}
	handler := NewDataCleanupHandler(store, nil)

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	task := domain.NewTask("", TaskTypeDataCleanup, map[string]any{
		"older_than": "48h",
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["total"] != int64(7) {
		t.Errorf("expected total=7, got %v", result.Outputs["total"])
	}

	wantCutoff := now.Add(-48 * time.Hour)
	for _, category := range store.Categories() {
		if got := store.deleted[category]; !got.Equal(wantCutoff) {
			t.Errorf("category %s: cutoff %s, want %s", category, got, wantCutoff)
		}
	}
}

func TestDataCleanupHandler_SingleCategory(t *testing.T) {
	store := &fakeCleanupStore{counts: map[string]int64{"chat_sessions": 5, "task_audit": 2}}
	handler := NewDataCleanupHandler(store, nil)

	task := domain.NewTask("", TaskTypeDataCleanup, map[string]any{
		"category": "task_audit",
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["total"] != int64(2) {
		t.Errorf("expected total=2, got %v", result.Outputs["total"])
	}
	if store.counts["chat_sessions"] != 5 {
		t.Errorf("other categories must be untouched")
	}
}

func TestDataCleanupHandler_DryRun(t *testing.T) {
	store := &fakeCleanupStore{counts: map[string]int64{"chat_sessions": 5, "task_audit": 2}}
	handler := NewDataCleanupHandler(store, nil)

	task := domain.NewTask("", TaskTypeDataCleanup, map[string]any{
		"dry_run": true,
	})

	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["total"] != int64(7) {
		t.Errorf("expected total=7, got %v", result.Outputs["total"])
	}
	if store.counts["chat_sessions"] != 5 || store.counts["task_audit"] != 2 {
		t.Errorf("dry run must not delete anything: %v", store.counts)
	}
}

func TestDataCleanupHandler_ThresholdTooShort(t *testing.T) {
	store := &fakeCleanupStore{counts: map[string]int64{"chat_sessions": 5}}
	handler := NewDataCleanupHandler(store, nil)

	task := domain.NewTask("", TaskTypeDataCleanup, map[string]any{
		"older_than": "5m",
	})

	_, err := handler.Execute(context.Background(), task)
	if !IsNonRetryable(err) {
		t.Errorf("threshold below minimum must be rejected, got %v", err)
	}
}

func TestDataCleanupHandler_RetentionAlias(t *testing.T) {
	store := &fakeCleanupStore{counts: map[string]int64{"chat_sessions": 5, "task_audit": 2}}
	handler := NewDataCleanupHandler(store, nil)

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	task := domain.NewTask("", TaskTypeDataCleanup, map[string]any{
		"retention": "24h",
	})

	if _, err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantCutoff := now.Add(-24 * time.Hour)
	if got := store.deleted["chat_sessions"]; !got.Equal(wantCutoff) {
		t.Errorf("cutoff %s, want %s", got, wantCutoff)
	}
}

func TestDataCleanupHandler_UnknownCategory(t *testing.T) {
	store := &fakeCleanupStore{counts: map[string]int64{"chat_sessions": 5}}
	handler := NewDataCleanupHandler(store, nil)

	task := domain.NewTask("", TaskTypeDataCleanup, map[string]any{
		"category": "users",
	})

	_, err := handler.Execute(context.Background(), task)
	if !IsNonRetryable(err) {
		t.Errorf("unknown category must be non-retryable, got %v", err)
	}
}

// --- HealthCheckHandler ---

func TestHealthCheckHandler_AllHealthy(t *testing.T) {
	metrics := telemetry.NewMetrics(nil)
	handler := NewHealthCheckHandler([]Probe{
		{Name: "qdrant", Check: func(ctx context.Context) error { return nil }},
		{Name: "model_runner", Check: func(ctx context.Context) error { return nil }},
	}, metrics, nil)

	result, err := handler.Execute(context.Background(), domain.NewTask("", TaskTypeHealthCheck, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["healthy"] != true {
		t.Errorf("expected healthy=true, got %v", result.Outputs["healthy"])
	}
	if !metrics.Healthy() {
		t.Error("metrics must report healthy")
	}
}

func TestHealthCheckHandler_DegradedFailsTask(t *testing.T) {
	metrics := telemetry.NewMetrics(nil)
	handler := NewHealthCheckHandler([]Probe{
		{Name: "qdrant", Check: func(ctx context.Context) error { return nil }},
		{Name: "database", Check: func(ctx context.Context) error { return fmt.Errorf("connection refused") }},
	}, metrics, nil)

	result, err := handler.Execute(context.Background(), domain.NewTask("", TaskTypeHealthCheck, nil))
	if err == nil {
		t.Fatal("failed probe must fail the task")
	}
	if IsNonRetryable(err) {
		t.Errorf("probe failure must stay retryable, got %v", err)
	}
	if result == nil || result.Outputs["healthy"] != false {
		t.Errorf("expected healthy=false in report, got %+v", result)
	}
	if metrics.Healthy() {
		t.Error("metrics must report unhealthy")
	}

	services := result.Outputs["services"].(map[string]any)
	if services["qdrant"] != "ok" {
		t.Errorf("expected qdrant ok, got %v", services["qdrant"])
	}
	if services["database"] == "ok" {
		t.Error("expected database error in report")
	}
}
