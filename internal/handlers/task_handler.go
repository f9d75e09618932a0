package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

type TaskHandler struct {
	service services.TaskService
}

func NewTaskHandler(service services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type CodeRequest struct {
	Code string `json:"code"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

type ApproveRequest struct {
	Report string `json:"report"`
}

type AssignRequest struct {
	DeveloperID int64 `json:"developer_id"`
	TesterID    int64 `json:"tester_id"`
}

func formInt64(c *gin.Context, field string) (int64, bool) {
	v, err := strconv.ParseInt(c.PostForm(field), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " is required"})
		return 0, false
	}
	return v, true
}

// @Summary      Create a task
// @Tags         Tasks
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title         formData  string  true   "Title"
// @Param        description   formData  string  false  "Description"
// @Param        developer_id  formData  int     true   "Developer"
// @Param        tester_id     formData  int     true   "Tester"
// @Param        project_id    formData  int     true   "Project"
// @Param        due_date      formData  string  true   "RFC3339 or YYYY-MM-DD"
// @Param        document      formData  file    false  "Document (pdf, doc, docx, zip, jpeg, png; 20 MB)"
// @Success      201  {object}  models.Task
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	doc, closer, ok := formFile(c, "document", storage.DocumentPolicy)
	if !ok {
		return
	}
	defer closeUpload(closer)

	in := services.CreateTaskInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Document:    doc,
	}
	if in.DeveloperID, ok = formInt64(c, "developer_id"); !ok {
		return
	}
	if in.TesterID, ok = formInt64(c, "tester_id"); !ok {
		return
	}
	if in.ProjectID, ok = formInt64(c, "project_id"); !ok {
		return
	}
	if raw := c.PostForm("due_date"); raw != "" {
		due, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
			return
		}
		in.DueDate = due
	}

	task, err := h.service.Create(c.Request.Context(), callerID(c), in)
	if err != nil {
		respondError(c, "task][create", err)
		return
	}
	logrus.Infof("[task][create][ok] id=%d project=%d dev=%d tester=%d", task.ID, task.ProjectID, task.DeveloperID, task.TesterID)
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	task, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "task][get", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ListAssigned(c *gin.Context) {
	list, err := h.service.ListAssigned(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "task][assigned", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *TaskHandler) ListByProject(c *gin.Context) {
	id, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	list, err := h.service.ListByProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, "task][by-project", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Submission serves both /tasks/:id/submission and /submissions/task/:taskId.
func (h *TaskHandler) Submission(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, param)
		if !ok {
			return
		}
		sub, err := h.service.GetSubmission(c.Request.Context(), id)
		if err != nil {
			respondError(c, "task][submission", err)
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

type transitionFunc func(ctx context.Context, callerID, taskID int64, text string) (*models.Task, error)

func (h *TaskHandler) transition(c *gin.Context, tag string, text string, fn transitionFunc) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	task, err := fn(c.Request.Context(), callerID(c), id, text)
	if err != nil {
		respondError(c, tag, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary      Submit code for a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int          true  "Task ID"
// @Param        body  body      CodeRequest  true  "Code"
// @Success      200   {object}  models.Task
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /tasks/{id}/submit [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	var req CodeRequest
	if !bindJSON(c, "task][submit", &req) {
		return
	}
	h.transition(c, "task][submit", req.Code, h.service.Submit)
}

func (h *TaskHandler) Modify(c *gin.Context) {
	var req CodeRequest
	if !bindJSON(c, "task][modify", &req) {
		return
	}
	h.transition(c, "task][modify", req.Code, h.service.Modify)
}

func (h *TaskHandler) SendBack(c *gin.Context) {
	var req FeedbackRequest
	// Feedback is optional, so an empty body is fine.
	if c.Request.ContentLength != 0 && !bindJSON(c, "task][send-back", &req) {
		return
	}
	h.transition(c, "task][send-back", req.Feedback, h.service.SendBack)
}

func (h *TaskHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, "task][approve", &req) {
		return
	}
	h.transition(c, "task][approve", req.Report, h.service.Approve)
}

func (h *TaskHandler) Assign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AssignRequest
	if !bindJSON(c, "task][assign", &req) {
		return
	}
	task, err := h.service.Reassign(c.Request.Context(), callerID(c), id, req.DeveloperID, req.TesterID)
	if err != nil {
		respondError(c, "task][assign", err)
		return
	}
	c.JSON(http.StatusOK, task)
}
