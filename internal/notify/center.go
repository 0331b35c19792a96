package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"powerdash/internal/model"
)

// API is the slice of the backend client the center needs.
type API interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	SendTestAlert(ctx context.Context) error
}

// AlertFunc is invoked for every newly pushed notification, after it has been
// merged into the list. Used for the local UI relay and alert sounds.
type AlertFunc func(model.Notification)

// Center holds the in-memory notification list, most-recent-first at all
// times. The unread badge is always derived from the list, never tracked on
// its own, so the two cannot drift.
//
// Mark-as-read is optimistic: the local flag flips first and stays flipped
// even when the confirm call fails; the next full Refresh reconciles against
// the server.
type Center struct {
	mu     sync.RWMutex
	api    API
	logger *slog.Logger
	policy *bluemonday.Policy
	alert  AlertFunc
	list   []model.Notification
}

func New(api API, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		api: api,
		logger: logger,
		// Server-provided text is rendered verbatim by the UI; strip any
		// markup it may carry.
		policy: bluemonday.StrictPolicy(),
	}
}

// SetAlertHook registers the side-effect hook for pushed notifications.
func (c *Center) SetAlertHook(fn AlertFunc) {
	c.mu.Lock()
	c.alert = fn
	c.mu.Unlock()
}

// Refresh replaces the list with a full fetch. The server already returns
// most-recent-first; that order is trusted.
func (c *Center) Refresh(ctx context.Context) error {
	list, err := c.api.Notifications(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		c.sanitize(&list[i])
	}

	c.mu.Lock()
	c.list = list
	c.mu.Unlock()
	return nil
}

// HandlePush merges one pushed notification record. Pushed items are always
// newer than anything in the list, so it is prepended.
func (c *Center) HandlePush(data []byte) error {
	var n model.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	c.sanitize(&n)

	c.mu.Lock()
	c.list = append([]model.Notification{n}, c.list...)
	alert := c.alert
	c.mu.Unlock()

	if alert != nil {
		alert(n)
	}
	return nil
}

// MarkRead flips the read flag locally, then confirms with the backend.
// Marking an already-read notification is a no-op. A failed confirm keeps the
// local flag set and returns the error.
func (c *Center) MarkRead(ctx context.Context, id int64) error {
	c.mu.Lock()
	found := false
	for i := range c.list {
		if c.list[i].ID != id {
			continue
		}
		found = true
		if c.list[i].Read {
			c.mu.Unlock()
			return nil
		}
		c.list[i].Read = true
		break
	}
	c.mu.Unlock()

	if !found {
		return nil
	}
	if err := c.api.MarkNotificationRead(ctx, id); err != nil {
		c.logger.Warn("mark-read confirm failed, keeping local flag", "id", id, "error", err)
		return err
	}
	return nil
}

// SendTestAlert asks the backend to emit a test notification over the push
// channel.
func (c *Center) SendTestAlert(ctx context.Context) error {
	return c.api.SendTestAlert(ctx)
}

// Notifications returns a copy of the current list.
func (c *Center) Notifications() []model.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Notification, len(c.list))
	copy(out, c.list)
	return out
}

// UnreadCount derives the badge value from the list.
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, n := range c.list {
		if !n.Read {
			count++
		}
	}
	return count
}

func (c *Center) sanitize(n *model.Notification) {
	n.Title = c.policy.Sanitize(n.Title)
	n.Message = c.policy.Sanitize(n.Message)
}
