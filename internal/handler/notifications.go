package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"powerdash/internal/model"
	"powerdash/internal/notify"
)

// NotificationCenter is the notification state the HTTP layer reads and
// mutates.
type NotificationCenter interface {
	Refresh(ctx context.Context) error
	Notifications() []model.Notification
	UnreadCount() int
	MarkRead(ctx context.Context, id int64) error
	SendTestAlert(ctx context.Context) error
}

type NotificationsHandler struct {
	Center NotificationCenter
	// PushState reports the subscription state for the connection badge.
	PushState func() notify.State
}

// List serves the in-memory list. ?refresh=true re-fetches from the backend
// first; ?filter=unread or ?filter=<type> narrows the result. The unread
// count always covers the whole list, not the filtered view.
func (h *NotificationsHandler) List(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.Center.Refresh(c.Request.Context()); err != nil {
			writeBackendError(c, err)
			return
		}
	}

	list := h.Center.Notifications()
	if filter := c.Query("filter"); filter != "" && filter != "all" {
		filtered := make([]model.Notification, 0, len(list))
		for _, n := range list {
			if filter == "unread" {
				if !n.Read {
					filtered = append(filtered, n)
				}
			} else if n.Type == filter {
				filtered = append(filtered, n)
			}
		}
		list = filtered
	}

	resp := gin.H{
		"notifications": list,
		"unread_count":  h.Center.UnreadCount(),
	}
	if h.PushState != nil {
		resp["push_state"] = h.PushState()
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead flips the read flag. The local flag is already set when the
// backend confirm fails, so that failure still reports the new count.
func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	confirmErr := h.Center.MarkRead(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"unread_count": h.Center.UnreadCount(),
		"confirmed":    confirmErr == nil,
	})
}

func (h *NotificationsHandler) TestAlert(c *gin.Context) {
	if err := h.Center.SendTestAlert(c.Request.Context()); err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
