package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/authz"
	"taskflow/internal/middleware"
	"taskflow/internal/models"
	"taskflow/internal/services"
	"taskflow/internal/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64(middleware.CtxUserID)
}

func callerRole(c *gin.Context) string {
	return c.GetString(middleware.CtxRole)
}

// callerActor maps the token onto the notification address space.
func callerActor(c *gin.Context) models.Actor {
	if callerRole(c) == authz.RolePM {
		return models.PMActor(callerID(c))
	}
	return models.EmployeeActor(callerID(c))
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryProjectID reads the optional ?project_id filter.
func queryProjectID(c *gin.Context) (*int64, bool) {
	raw := c.Query("project_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid project_id"})
		return nil, false
	}
	return &id, true
}

func bindJSON(c *gin.Context, tag string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logrus.Debugf("[%s][bind][err] %v", tag, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// formFile validates an optional multipart file. A nil Upload with ok=true
// means the field was absent. Pass the closer to closeUpload when done.
func formFile(c *gin.Context, field string, p storage.Policy) (*storage.Upload, io.Closer, bool) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, true
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return nil, nil, false
	}
	up, closer, err := storage.Open(fh, p)
	if err != nil {
		respondError(c, "upload", err)
		return nil, nil, false
	}
	return up, closer, true
}

var statusByError = []struct {
	err    error
	status int
}{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrOTPInvalid, http.StatusBadRequest},
	{services.ErrOTPExpired, http.StatusBadRequest},
	{storage.ErrUnsupportedType, http.StatusBadRequest},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrUnauthenticated, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrInactiveAccount, http.StatusForbidden},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrDuplicate, http.StatusConflict},
	{services.ErrConflict, http.StatusConflict},
}

// respondError writes {"error": ...} with the status the error maps to.
// Unmapped errors are logged and reported as a generic 500.
func respondError(c *gin.Context, tag string, err error) {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			logrus.Debugf("[%s][%d] %v", tag, m.status, err)
			c.JSON(m.status, ErrorResponse{Error: err.Error()})
			return
		}
	}
	logrus.Errorf("[%s][err] %v", tag, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func closeUpload(cl io.Closer) {
	if cl != nil {
		_ = cl.Close()
	}
}
