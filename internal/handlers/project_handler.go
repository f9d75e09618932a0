package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

type ProjectHandler struct {
	projects services.ProjectService
}

func NewProjectHandler(projects services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"` // RFC3339 or YYYY-MM-DD
	TotalTasks  int    `json:"total_tasks"`
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// @Summary      Create a project
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      CreateProjectRequest  true  "Project"
// @Success      201   {object}  models.Project
// @Failure      400   {object}  map[string]string
// @Router       /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if !bindJSON(c, "project][create", &req) {
		return
	}
	in := services.CreateProjectInput{Name: req.Name, Description: req.Description, TotalTasks: req.TotalTasks}
	if req.Deadline != "" {
		d, err := parseDate(req.Deadline)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deadline"})
			return
		}
		in.Deadline = &d
	}
	p, err := h.projects.Create(c.Request.Context(), callerID(c), in)
	if err != nil {
		respondError(c, "project][create", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) List(c *gin.Context) {
	list, err := h.projects.List(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "project][list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "project][get", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, "project][status", &req) {
		return
	}
	p, err := h.projects.UpdateStatus(c.Request.Context(), callerID(c), id, models.ProjectStatus(req.Status))
	if err != nil {
		respondError(c, "project][status", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
