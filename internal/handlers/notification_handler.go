package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/realtime"
	"taskflow/internal/services"
)

type NotificationHandler struct {
	notifications services.NotificationService
	hub           *realtime.Hub
}

func NewNotificationHandler(notifications services.NotificationService, hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, hub: hub}
}

// ActionRequest takes the bug id as bug_id or bugId.
type ActionRequest struct {
	Action   models.NotificationAction `json:"action" binding:"required"`
	BugID    int64                     `json:"bug_id"`
	BugIDAlt int64                     `json:"bugId" swaggerignore:"true"`
}

func (r ActionRequest) bugID() int64 {
	if r.BugID != 0 {
		return r.BugID
	}
	return r.BugIDAlt
}

// @Summary      List the caller's notifications, newest first
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.Notification
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.ListForReceiver(c.Request.Context(), callerActor(c))
	if err != nil {
		respondError(c, "notification][list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkOneRead(c.Request.Context(), callerActor(c), id); err != nil {
		respondError(c, "notification][read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), callerActor(c))
	if err != nil {
		respondError(c, "notification][read-all", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// @Summary      Accept or reject the bug a notification is about
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int            true  "Notification ID"
// @Param        body  body      ActionRequest  true  "Accept or Reject"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /notifications/{id}/action [post]
func (h *NotificationHandler) TakeAction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ActionRequest
	if !bindJSON(c, "notification][action", &req) {
		return
	}
	if req.bugID() <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bug_id is required"})
		return
	}
	notif, bug, err := h.notifications.TakeAction(c.Request.Context(), callerActor(c), id, req.Action, req.bugID())
	if err != nil {
		respondError(c, "notification][action", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": notif, "bug": bug})
}

// Stream upgrades to a websocket that receives the caller's new notifications.
func (h *NotificationHandler) Stream(c *gin.Context) {
	actor := callerActor(c)
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		logrus.Debugf("[notification][stream][err] %s: %v", actor, err)
		return
	}
	h.hub.Serve(actor, conn)
}
