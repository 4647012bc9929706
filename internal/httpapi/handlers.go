package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coderforge/solverd/internal/task"
)

// SolveRequest is the body of POST /api/v1/solve.
type SolveRequest struct {
	Requirements      string `json:"requirements"`
	Language          string `json:"language"`
	AdditionalContext string `json:"additional_context"`
}

// SolveResponse acknowledges task creation.
type SolveResponse struct {
	TaskID string      `json:"task_id"`
	Status task.Status `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "solverd",
	})
}

func (s *Server) handleSolve(c echo.Context) error {
	var req SolveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.Requirements == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "requirements must not be empty",
		})
	}

	id, err := s.manager.CreateTask(req.Requirements, req.Language, req.AdditionalContext)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	tasksCreated.Inc()
	return c.JSON(http.StatusAccepted, SolveResponse{
		TaskID: id,
		Status: task.StatusPending,
	})
}

func (s *Server) handleTaskStatus(c echo.Context) error {
	summary, err := s.manager.GetTaskStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "task not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCancel(c echo.Context) error {
	err := s.manager.CancelTask(c.Param("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "task not found",
			})
		}
		return c.JSON(http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
	}
	tasksCancelled.Inc()
	return c.JSON(http.StatusAccepted, map[string]string{
		"task_id": c.Param("id"),
		"status":  "cancelling",
	})
}
