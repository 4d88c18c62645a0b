package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/uptask/internal/middleware"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/pkg/response"
)

type TaskHandler struct {
	taskService   *services.TaskService
	collaboration *services.CollaborationService
}

func NewTaskHandler(tasks *services.TaskService, collaboration *services.CollaborationService) *TaskHandler {
	return &TaskHandler{
		taskService:   tasks,
		collaboration: collaboration,
	}
}

// Create adds a task to a project
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.collaboration.CreateTask(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, task)
}

// GetByID
// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Update
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.collaboration.UpdateTask(c.Request.Context(), id, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Delete
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	if _, err := h.collaboration.DeleteTask(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "task deleted")
}

// Toggle flips a task's completion state
// POST /api/tasks/state/:id
func (h *TaskHandler) Toggle(c *gin.Context) {
	id, ok := parseID(c, "id", "task")
	if !ok {
		return
	}

	task, err := h.collaboration.ToggleTask(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}
