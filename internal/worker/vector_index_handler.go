package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/vectorstore"
)

// defaultBatchSize — размер батча upsert по умолчанию.
const defaultBatchSize = 100

// VectorStore — подмножество операций векторного хранилища,
// необходимое для индексации. Реализуется vectorstore.Client.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
}

// Embedder вычисляет embeddings для документов без готовых векторов.
// Реализуется modelrunner.Client; nil — принимаются только документы
// с готовыми векторами.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// pointIDNamespace — namespace для детерминированных UUID точек:
// повторная индексация того же документа перезаписывает те же точки.
var pointIDNamespace = uuid.MustParse("c1a3f6d0-5b2e-4f7a-9c8d-1e0b4a6f2d93")

// VectorIndexHandler обрабатывает tasks типа vector_index:
// индексирует документы в коллекцию векторного хранилища батчами.
//
// Payload:
//
//	collection      — имя коллекции (обязательно)
//	documents       — список документов: {id, text | vector, metadata}
//	batch_size      — размер батча upsert (default: 100)
//	vector_size     — размерность коллекции (default: по первому вектору)
//	embedding_model — модель для embeddings (для документов с text)
type VectorIndexHandler struct {
	store    VectorStore
	embedder Embedder
	logger   *slog.Logger
}

// NewVectorIndexHandler создаёт handler индексации.
func NewVectorIndexHandler(store VectorStore, embedder Embedder, logger *slog.Logger) *VectorIndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorIndexHandler{store: store, embedder: embedder, logger: logger}
}

// Execute выполняет индексацию документов из payload.
func (h *VectorIndexHandler) Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
	collection, err := payloadStringRequired(task.Payload, "collection")
	if err != nil {
		return nil, err
	}

	batchSize := payloadInt(task.Payload, "batch_size", defaultBatchSize)
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	docs, err := parseDocuments(task.Payload)
	if err != nil {
		return nil, err
	}

	if err := h.embedMissing(ctx, task.Payload, docs); err != nil {
		return nil, err
	}

	points := make([]vectorstore.Point, 0, len(docs))
	for _, doc := range docs {
		points = append(points, vectorstore.Point{
			ID:      pointID(collection, doc.ID),
			Vector:  doc.Vector,
			Payload: doc.Metadata,
		})
	}

	vectorSize := payloadInt(task.Payload, "vector_size", 0)
	if vectorSize <= 0 && len(points) > 0 {
		vectorSize = len(points[0].Vector)
	}
	if vectorSize <= 0 {
		vectorSize = 384
	}

	if err := h.store.EnsureCollection(ctx, collection, vectorSize); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	var batches int
	for start := 0; start < len(points); start += batchSize {
		end := min(start+batchSize, len(points))
		if err := h.store.Upsert(ctx, collection, points[start:end]); err != nil {
			return nil, fmt.Errorf("failed to upsert batch %d: %w", batches, err)
		}
		batches++
	}

	h.logger.Info("documents indexed",
		"task_id", task.ID,
		"collection", collection,
		"documents", len(points),
		"batches", batches,
	)

	return &HandlerResult{Outputs: map[string]any{
		"collection": collection,
		"indexed":    len(points),
		"batches":    batches,
	}}, nil
}

// embedMissing вычисляет векторы для документов, пришедших с text.
func (h *VectorIndexHandler) embedMissing(ctx context.Context, payload map[string]any, docs []indexDocument) error {
	var texts []string
	var missing []int
	for i := range docs {
		if docs[i].Vector == nil {
			texts = append(texts, docs[i].Text)
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if h.embedder == nil {
		return NonRetryable(fmt.Errorf("documents without vectors require an embedder"))
	}

	model, _ := payloadString(payload, "embedding_model")
	vectors, err := h.embedder.Embed(ctx, model, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d documents: %w", len(texts), err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
	}
	for n, i := range missing {
		docs[i].Vector = vectors[n]
	}
	return nil
}

// pointID — детерминированный UUID точки по паре (collection, doc id).
func pointID(collection, docID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(collection+"/"+docID)).String()
}

type indexDocument struct {
	ID       string
	Text     string
	Vector   []float64
	Metadata map[string]any
}

// parseDocuments разбирает список documents из payload.
// Документ несёт либо готовый vector, либо text для embedding.
// Ошибки формата — non-retryable: повтор их не исправит.
func parseDocuments(payload map[string]any) ([]indexDocument, error) {
	raw, ok := payload["documents"]
	if !ok {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, NonRetryable(fmt.Errorf("payload field %q: expected list, got %T", "documents", raw))
	}

	docs := make([]indexDocument, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, NonRetryable(fmt.Errorf("documents[%d]: expected object, got %T", i, item))
		}

		id, err := payloadStringRequired(m, "id")
		if err != nil {
			return nil, NonRetryable(fmt.Errorf("documents[%d]: %w", i, err))
		}

		doc := indexDocument{ID: id}

		if rawVector, ok := m["vector"].([]any); ok {
			vector := make([]float64, 0, len(rawVector))
			for j, v := range rawVector {
				f, ok := v.(float64)
				if !ok {
					return nil, NonRetryable(fmt.Errorf("documents[%d].vector[%d]: expected number, got %T", i, j, v))
				}
				vector = append(vector, f)
			}
			doc.Vector = vector
		} else if text, ok := payloadString(m, "text"); ok && text != "" {
			doc.Text = text
		} else {
			return nil, NonRetryable(fmt.Errorf("documents[%d]: either %q or %q is required", i, "vector", "text"))
		}

		if metadata, ok := m["metadata"].(map[string]any); ok {
			doc.Metadata = metadata
		}

		docs = append(docs, doc)
	}
	return docs, nil
}
