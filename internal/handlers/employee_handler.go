package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

type EmployeeHandler struct {
	identity services.IdentityService
}

func NewEmployeeHandler(identity services.IdentityService) *EmployeeHandler {
	return &EmployeeHandler{identity: identity}
}

type CreateEmployeeRequest struct {
	EmpID    string              `json:"emp_id" binding:"required"`
	Password string              `json:"password" binding:"required"`
	Role     models.EmployeeRole `json:"role" binding:"required"`
	Email    string              `json:"email" binding:"required"`
	Name     string              `json:"name"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// @Summary      Create a developer or tester account
// @Description  The initial credentials are emailed to the employee.
// @Tags         Employees
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      CreateEmployeeRequest  true  "Employee"
// @Success      201   {object}  models.Employee
// @Failure      409   {object}  map[string]string
// @Router       /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req CreateEmployeeRequest
	if !bindJSON(c, "employee][create", &req) {
		return
	}
	emp, err := h.identity.CreateEmployee(c.Request.Context(), callerID(c), services.CreateEmployeeInput{
		EmpID: req.EmpID, Password: req.Password, Role: req.Role, Email: req.Email, Name: req.Name,
	})
	if err != nil {
		respondError(c, "employee][create", err)
		return
	}
	c.JSON(http.StatusCreated, emp)
}

func (h *EmployeeHandler) List(c *gin.Context) {
	list, err := h.identity.ListEmployees(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "employee][list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *EmployeeHandler) ListDevelopers(c *gin.Context) { h.listActive(c, models.RoleDeveloper) }
func (h *EmployeeHandler) ListTesters(c *gin.Context)    { h.listActive(c, models.RoleTester) }

func (h *EmployeeHandler) listActive(c *gin.Context, role models.EmployeeRole) {
	list, err := h.identity.ListActiveByRole(c.Request.Context(), callerID(c), role)
	if err != nil {
		respondError(c, "employee][list-active", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *EmployeeHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, "employee][status", &req) {
		return
	}
	emp, err := h.identity.UpdateEmployeeStatus(c.Request.Context(), callerID(c), id, models.EmployeeStatus(req.Status))
	if err != nil {
		respondError(c, "employee][status", err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

func (h *EmployeeHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.identity.DeleteEmployee(c.Request.Context(), callerID(c), id); err != nil {
		respondError(c, "employee][delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EmployeeHandler) Profile(c *gin.Context) {
	emp, err := h.identity.GetEmployee(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "employee][profile", err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

// UpdateProfile accepts multipart so a photo can ride along with the fields.
func (h *EmployeeHandler) UpdateProfile(c *gin.Context) {
	photo, closer, ok := formFile(c, "profile_photo", storage.ImagePolicy)
	if !ok {
		return
	}
	defer closeUpload(closer)

	var in services.UpdateProfileInput
	if v, ok := c.GetPostForm("name"); ok {
		in.Name = &v
	}
	if v, ok := c.GetPostForm("mobile"); ok {
		in.Mobile = &v
	}
	if v, ok := c.GetPostForm("address"); ok {
		in.Address = &v
	}
	if v, ok := c.GetPostForm("telegram_chat_id"); ok {
		chat, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_chat_id"})
			return
		}
		in.TelegramChatID = &chat
	}
	emp, err := h.identity.UpdateEmployeeProfile(c.Request.Context(), callerID(c), in, photo)
	if err != nil {
		respondError(c, "employee][update-profile", err)
		return
	}
	c.JSON(http.StatusOK, emp)
}
