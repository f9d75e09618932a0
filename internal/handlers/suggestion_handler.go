package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

type SuggestionHandler struct {
	suggestions services.SuggestionService
}

func NewSuggestionHandler(suggestions services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions}
}

type CreateSuggestionRequest struct {
	TaskID      int64  `json:"task_id" binding:"required"`
	ProjectID   int64  `json:"project_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (h *SuggestionHandler) Create(c *gin.Context) {
	var req CreateSuggestionRequest
	if !bindJSON(c, "suggestion][create", &req) {
		return
	}
	sug, err := h.suggestions.Create(c.Request.Context(), callerID(c), services.CreateSuggestionInput{
		TaskID: req.TaskID, ProjectID: req.ProjectID, Title: req.Title, Description: req.Description,
	})
	if err != nil {
		respondError(c, "suggestion][create", err)
		return
	}
	c.JSON(http.StatusCreated, sug)
}

func (h *SuggestionHandler) Resolve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, "suggestion][resolve", &req) {
		return
	}
	sug, err := h.suggestions.Resolve(c.Request.Context(), callerID(c), id, models.SuggestionStatus(req.Status))
	if err != nil {
		respondError(c, "suggestion][resolve", err)
		return
	}
	c.JSON(http.StatusOK, sug)
}

func (h *SuggestionHandler) ListMine(c *gin.Context) {
	h.list(c, callerID(c))
}

// ListByPM only lets a PM read their own inbox.
func (h *SuggestionHandler) ListByPM(c *gin.Context) {
	id, ok := paramID(c, "pmId")
	if !ok {
		return
	}
	if id != callerID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	h.list(c, id)
}

func (h *SuggestionHandler) list(c *gin.Context, pmID int64) {
	list, err := h.suggestions.ListForPM(c.Request.Context(), pmID)
	if err != nil {
		respondError(c, "suggestion][list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *SuggestionHandler) ListAll(c *gin.Context) {
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}
	list, err := h.suggestions.ListAll(c.Request.Context(), callerID(c), projectID)
	if err != nil {
		respondError(c, "suggestion][list-all", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
