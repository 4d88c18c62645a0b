package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/uptask/internal/middleware"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
	collaboration  *services.CollaborationService
}

func NewProjectHandler(projects *services.ProjectService, collaboration *services.CollaborationService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projects,
		collaboration:  collaboration,
	}
}

// List returns the caller's projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, projects)
}

// GetByID returns a project with its tasks and collaborators
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Create creates a new project
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.collaboration.CreateProject(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, project)
}

// Update updates a project
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.collaboration.UpdateProject(c.Request.Context(), id, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Delete deletes a project and its tasks
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	if err := h.collaboration.DeleteProject(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "project deleted")
}

// SearchCollaborator finds a user by email
// POST /api/projects/colaboradores
func (h *ProjectHandler) SearchCollaborator(c *gin.Context) {
	var req services.SearchCollaboratorRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.projectService.SearchCollaborator(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// AddCollaborator
// POST /api/projects/colaboradores/:id
func (h *ProjectHandler) AddCollaborator(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.AddCollaboratorRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.collaboration.AddCollaborator(c.Request.Context(), id, middleware.GetUserID(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// RemoveCollaborator
// POST /api/projects/eliminar-colaborador/:id
func (h *ProjectHandler) RemoveCollaborator(c *gin.Context) {
	id, ok := parseID(c, "id", "project")
	if !ok {
		return
	}

	var req services.RemoveCollaboratorRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.collaboration.RemoveCollaborator(c.Request.Context(), id, middleware.GetUserID(c), req.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "collaborator removed")
}
