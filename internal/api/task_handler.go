package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/worker"
)

// SubmitTask обрабатывает POST /api/v1/tasks.
//
// По умолчанию отвечает 202 сразу после постановки в очередь.
// С ?wait=true держит запрос до терминального результата task
// и возвращает его целиком; отмена запроса клиентом не отменяет task.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Type == "" {
		BadRequest(w, "field 'type' is required")
		return
	}

	task := domain.NewTask(req.ID, req.Type, req.Payload)
	if req.MaxAttempts > 0 {
		task.MaxAttempts = req.MaxAttempts
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		if err := h.engine.Submit(task); err != nil {
			h.submitError(w, err)
			return
		}
		Accepted(w, TaskAcceptedResponse{
			TaskID: task.ID,
			Type:   task.Type,
			Status: string(task.Status),
		})
		return
	}

	done, err := h.engine.SubmitWait(task)
	if err != nil {
		h.submitError(w, err)
		return
	}

	select {
	case outcome := <-done:
		Success(w, taskResult(outcome.Task))
	case <-r.Context().Done():
		// Клиент ушёл; task продолжает выполняться
		h.logger.Debug("wait request cancelled", "task_id", task.ID)
	}
}

// GetStatus обрабатывает GET /api/v1/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, StatusResponse{
		State:       string(h.engine.State()),
		Healthy:     h.engine.Healthy(),
		ActiveTasks: h.engine.ActiveCount(),
		QueuedTasks: h.engine.QueuedCount(),
		TaskTypes:   h.engine.Types(),
	})
}

// submitError преобразует ошибку постановки task в HTTP ответ.
func (h *Handler) submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, worker.ErrUnknownTaskType):
		BadRequest(w, err.Error())
	case errors.Is(err, worker.ErrDuplicateTask):
		Conflict(w, err.Error())
	case errors.Is(err, worker.ErrQueueFull):
		TooManyRequests(w, err.Error())
	case errors.Is(err, worker.ErrNotRunning):
		ServiceUnavailable(w, err.Error())
	default:
		InternalError(w, h.logger, err)
	}
}
