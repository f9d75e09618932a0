package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/services"
)

type ReportHandler struct {
	projects services.ProjectService
}

func NewReportHandler(projects services.ProjectService) *ReportHandler {
	return &ReportHandler{projects: projects}
}

// @Summary      Download a project status report
// @Tags         Projects
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  int  true  "Project ID"
// @Success      200  {file}  binary
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /projects/{id}/report [get]
func (h *ReportHandler) ProjectReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, err := h.projects.Report(c.Request.Context(), callerID(c), id)
	if err != nil {
		respondError(c, "report][project", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="project-%d-report.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", doc)
}
