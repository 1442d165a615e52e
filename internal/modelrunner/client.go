// Package modelrunner — HTTP-клиент model runner'а
// (OpenAI-совместимый API).
//
// Используется handler'ом model_cache (проверка наличия модели,
// прогрев через минимальный chat completion, выселение из кэша)
// и handler'ом vector_index как Embedder.
package modelrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultURL — адрес API model runner'а по умолчанию.
	DefaultURL = "http://localhost:8080/v1"

	// DefaultEmbeddingModel — модель embeddings, если не указана явно.
	DefaultEmbeddingModel = "nomic-embed-text"

	defaultTimeout = 60 * time.Second
)

// ErrModelNotFound — модель не известна model runner'у.
var ErrModelNotFound = errors.New("model not found")

// Model — описание модели из каталога.
type Model struct {
	ID string `json:"id"`
}

// Client — клиент model runner'а.
type Client struct {
	baseURL string
	http    *http.Client
}

// Config — конфигурация клиента.
type Config struct {
	// URL — базовый адрес API, включая префикс /v1
	// (default: http://localhost:8080/v1).
	URL string

	// Timeout — таймаут одного запроса. Прогрев модели включает
	// её загрузку, поэтому default щедрый: 60s.
	Timeout time.Duration
}

// New создаёт клиент model runner'а.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.URL, "/")
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

// ListModels возвращает каталог доступных моделей.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("failed to list models: HTTP %d", status)
	}

	var parsed struct {
		Data []Model `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return parsed.Data, nil
}

// HasModel проверяет, известна ли модель model runner'у.
func (c *Client) HasModel(ctx context.Context, model string) (bool, error) {
	status, _, err := c.do(ctx, http.MethodGet, "/models/"+url.PathEscape(model), nil)
	if err != nil {
		return false, fmt.Errorf("failed to check model %s: %w", model, err)
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 400:
		return false, fmt.Errorf("failed to check model %s: HTTP %d", model, status)
	}
	return true, nil
}

// Preload прогревает модель минимальным chat completion:
// model runner загружает модель в память при первом запросе.
func (c *Client) Preload(ctx context.Context, model string) error {
	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": "ping"},
		},
		"max_tokens": 1,
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return fmt.Errorf("failed to preload model %s: %w", model, err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrModelNotFound, model)
	}
	if status >= 400 {
		return fmt.Errorf("failed to preload model %s: HTTP %d: %s", model, status, truncate(respBody, 200))
	}
	return nil
}

// Evict выгружает модель из кэша model runner'а.
func (c *Client) Evict(ctx context.Context, model string) error {
	path := "/models/" + url.PathEscape(model) + "/unload"
	status, respBody, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return fmt.Errorf("failed to evict model %s: %w", model, err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrModelNotFound, model)
	}
	if status >= 400 {
		return fmt.Errorf("failed to evict model %s: HTTP %d: %s", model, status, truncate(respBody, 200))
	}
	return nil
}

// Embed вычисляет embeddings для набора текстов. Пустое имя модели
// заменяется на DefaultEmbeddingModel. Порядок векторов соответствует
// порядку текстов.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	body := map[string]any{
		"model": model,
		"input": texts,
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("failed to embed with model %s: %w", model, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, model)
	}
	if status >= 400 {
		return nil, fmt.Errorf("failed to embed with model %s: HTTP %d: %s", model, status, truncate(respBody, 200))
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings response: %w", err)
	}

	vectors := make([][]float64, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}

// Healthz проверяет доступность model runner'а.
// Эндпоинт /health живёт на корне сервера, вне префикса /v1.
func (c *Client) Healthz(ctx context.Context) error {
	root := strings.TrimSuffix(c.baseURL, "/v1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("model runner is unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("model runner is unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
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
