package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/history"
)

// GmailWebhook receives Pub/Sub push notifications for watched mailboxes.
// It always answers 200: a non-2xx status would make Pub/Sub redeliver, and
// redelivery cannot fix a malformed payload or an unknown account. Missed
// windows are recovered by the cursor on the next notification or by the
// reconciliation sweep, never by push retries.
func (h *Handlers) GmailWebhook(c *gin.Context) {
	n, ok := decodeNotification(c)
	if ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		if err := h.processor.ProcessNotification(ctx, n); err != nil {
			logrus.WithFields(logrus.Fields{
				"email":     n.EmailAddress,
				"historyId": n.HistoryID,
			}).Errorf("Webhook processing failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func decodeNotification(c *gin.Context) (history.Notification, bool) {
	var n history.Notification

	var envelope PushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		logrus.Warnf("Webhook: invalid push envelope: %v", err)
		return n, false
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		logrus.Warnf("Webhook: invalid base64 payload: %v", err)
		return n, false
	}

	if err := json.Unmarshal(data, &n); err != nil {
		logrus.Warnf("Webhook: invalid notification payload: %v", err)
		return n, false
	}

	if n.EmailAddress == "" || n.HistoryID == 0 {
		logrus.Warn("Webhook: notification missing email address or history id")
		return n, false
	}

	return n, true
}
