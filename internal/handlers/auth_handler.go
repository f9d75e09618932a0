package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

type AuthHandler struct {
	identity services.IdentityService
	reset    services.PasswordResetService
}

func NewAuthHandler(identity services.IdentityService, reset services.PasswordResetService) *AuthHandler {
	return &AuthHandler{identity: identity, reset: reset}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type EmployeeLoginRequest struct {
	EmpID    string              `json:"emp_id" binding:"required"`
	Password string              `json:"password" binding:"required"`
	Role     models.EmployeeRole `json:"role" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

type OTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// @Summary      Register a project manager
// @Tags         Auth
// @Accept       multipart/form-data
// @Produce      json
// @Param        name      formData  string  true   "Full name"
// @Param        email     formData  string  true   "Email"
// @Param        mobile    formData  string  true   "Mobile number"
// @Param        password  formData  string  true   "Password, at least 6 characters"
// @Param        address   formData  string  false  "Address"
// @Param        profile_pic  formData  file  true  "Profile image (jpeg, png, gif; 5 MB)"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /pm/register [post]
func (h *AuthHandler) RegisterPM(c *gin.Context) {
	img, closer, ok := formFile(c, "profile_pic", storage.ImagePolicy)
	if !ok {
		return
	}
	defer closeUpload(closer)

	in := services.RegisterPMInput{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Mobile:   c.PostForm("mobile"),
		Password: c.PostForm("password"),
	}
	if addr, ok := c.GetPostForm("address"); ok {
		in.Address = &addr
	}
	res, err := h.identity.RegisterPM(c.Request.Context(), in, img)
	if err != nil {
		respondError(c, "auth][register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": res.Token, "pm": res.PM})
}

// @Summary      Log in as a project manager
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /pm/login [post]
func (h *AuthHandler) LoginPM(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, "auth][login", &req) {
		return
	}
	res, err := h.identity.LoginPM(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logrus.Infof("[auth][login] pm login failed for %q: %v", strings.TrimSpace(req.Email), err)
		respondError(c, "auth][login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": res.Token, "pm": res.PM})
}

// @Summary      Log in as a developer or tester
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      EmployeeLoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]string
// @Failure      403    {object}  map[string]string
// @Router       /employees/login [post]
func (h *AuthHandler) LoginEmployee(c *gin.Context) {
	var req EmployeeLoginRequest
	if !bindJSON(c, "auth][employee-login", &req) {
		return
	}
	res, err := h.identity.LoginEmployee(c.Request.Context(), req.EmpID, req.Password, req.Role)
	if err != nil {
		logrus.Infof("[auth][employee-login] %s %q failed: %v", req.Role, req.EmpID, err)
		respondError(c, "auth][employee-login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":  res.Token,
		"emp_id": res.Employee.EmpID,
		"role":   res.Employee.Role,
		"id":     res.Employee.ID,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	pm, err := h.identity.GetPM(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "pm][me", err)
		return
	}
	c.JSON(http.StatusOK, pm)
}

// @Summary      Send a password reset code
// @Tags         Auth
// @Accept       json
// @Param        body  body  EmailRequest  true  "Account email"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, "auth][forgot", &req) {
		return
	}
	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, "auth][forgot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to email"})
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req OTPRequest
	if !bindJSON(c, "auth][verify-otp", &req) {
		return
	}
	if err := h.reset.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondError(c, "auth][verify-otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP verified"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, "auth][reset", &req) {
		return
	}
	if err := h.reset.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondError(c, "auth][reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}
