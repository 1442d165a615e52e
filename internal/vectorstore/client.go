// Package vectorstore — HTTP-клиент векторного хранилища Qdrant.
//
// Покрывает минимум, нужный воркеру: создание коллекции,
// upsert точек и health-проба.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultURL — адрес Qdrant по умолчанию.
	DefaultURL = "http://localhost:6333"

	defaultTimeout = 30 * time.Second
)

// Point — одна точка коллекции.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Client — клиент Qdrant поверх его REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Config — конфигурация клиента.
type Config struct {
	// URL — базовый адрес Qdrant (default: http://localhost:6333).
	URL string

	// Timeout — таймаут одного запроса (default: 30s).
	Timeout time.Duration
}

// New создаёт клиент Qdrant.
func New(cfg Config) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// EnsureCollection создаёт коллекцию, если её ещё нет.
// Повторное создание существующей коллекции не является ошибкой.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := c.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	status, respBody, err := c.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(name), body)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	// 409 — коллекция появилась между проверкой и созданием.
	if status >= 400 && status != http.StatusConflict {
		return fmt.Errorf("failed to create collection %s: HTTP %d: %s", name, status, truncate(respBody, 200))
	}
	return nil
}

// Upsert вставляет или обновляет точки коллекции.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	body := map[string]any{"points": points}
	path := "/collections/" + url.PathEscape(collection) + "/points?wait=true"
	status, respBody, err := c.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return fmt.Errorf("failed to upsert points into %s: %w", collection, err)
	}
	if status >= 400 {
		return fmt.Errorf("failed to upsert points into %s: HTTP %d: %s", collection, status, truncate(respBody, 200))
	}
	return nil
}

// Healthz проверяет доступность Qdrant.
func (c *Client) Healthz(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("qdrant is unreachable: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("qdrant is unhealthy: HTTP %d", status)
	}
	return nil
}

func (c *Client) collectionExists(ctx context.Context, name string) (bool, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 400:
		return false, fmt.Errorf("failed to check collection %s: HTTP %d: %s", name, status, truncate(respBody, 200))
	}
	return true, nil
}

// do выполняет запрос и возвращает статус и тело ответа.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, string, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(respBody), nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
