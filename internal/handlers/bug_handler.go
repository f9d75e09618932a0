package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

type BugHandler struct {
	bugs services.BugService
}

func NewBugHandler(bugs services.BugService) *BugHandler {
	return &BugHandler{bugs: bugs}
}

// @Summary      Report a bug against a task
// @Tags         Bugs
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        task_id      formData  int     true   "Task"
// @Param        bug_title    formData  string  true   "Title"
// @Param        description  formData  string  true   "Description"
// @Param        module       formData  string  false  "Module"
// @Param        severity     formData  string  false  "Low, Medium (default), High or Critical"
// @Param        bug_file     formData  file    false  "Attachment"
// @Success      201  {object}  models.Bug
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /bugs [post]
func (h *BugHandler) Report(c *gin.Context) {
	file, closer, ok := formFile(c, "bug_file", storage.DocumentPolicy)
	if !ok {
		return
	}
	defer closeUpload(closer)

	taskID, ok := formInt64(c, "task_id")
	if !ok {
		return
	}
	bug, err := h.bugs.Report(c.Request.Context(), callerID(c), services.ReportBugInput{
		TaskID:      taskID,
		Title:       c.PostForm("bug_title"),
		Module:      c.PostForm("module"),
		Severity:    models.BugSeverity(c.PostForm("severity")),
		Description: c.PostForm("description"),
		File:        file,
	})
	if err != nil {
		respondError(c, "bug][report", err)
		return
	}
	c.JSON(http.StatusCreated, bug)
}

// @Summary      Change a bug's status
// @Description  The reporter receives a notification offering Accept or Reject.
// @Tags         Bugs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int            true  "Bug ID"
// @Param        body  body      StatusRequest  true  "Pending, InProgress or Completed"
// @Success      200   {object}  map[string]interface{}
// @Failure      403   {object}  map[string]string
// @Router       /bugs/{id}/status [patch]
func (h *BugHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, "bug][status", &req) {
		return
	}
	bug, notif, err := h.bugs.UpdateStatus(c.Request.Context(), callerID(c), id, models.BugStatus(req.Status))
	if err != nil {
		respondError(c, "bug][status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bug": bug, "notification": notif})
}

func (h *BugHandler) ListAll(c *gin.Context) {
	projectID, ok := queryProjectID(c)
	if !ok {
		return
	}
	h.respondList(c, "bug][list")(h.bugs.ListAll(c.Request.Context(), callerID(c), projectID))
}

func (h *BugHandler) ListAssigned(c *gin.Context) {
	h.respondList(c, "bug][assigned")(h.bugs.ListAssigned(c.Request.Context(), callerID(c)))
}

func (h *BugHandler) ListReported(c *gin.Context) {
	h.respondList(c, "bug][reported")(h.bugs.ListReported(c.Request.Context(), callerID(c)))
}

func (h *BugHandler) respondList(c *gin.Context, tag string) func([]models.Bug, error) {
	return func(list []models.Bug, err error) {
		if err != nil {
			respondError(c, tag, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func (h *BugHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	bug, err := h.bugs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "bug][get", err)
		return
	}
	c.JSON(http.StatusOK, bug)
}
