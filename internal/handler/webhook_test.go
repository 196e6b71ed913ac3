package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InboxSlash/inbox-slash/internal/history"
)

type fakeProcessor struct {
	notifications []history.Notification
	err           error
}

func (p *fakeProcessor) ProcessNotification(_ context.Context, n history.Notification) error {
	p.notifications = append(p.notifications, n)
	return p.err
}

type fakeSweeper struct{}

func (fakeSweeper) Start() error       { return nil }
func (fakeSweeper) Stop() error        { return nil }
func (fakeSweeper) IsRunning() bool    { return false }
func (fakeSweeper) RunOnce()           {}
func (fakeSweeper) NextRun() time.Time { return time.Time{} }

func webhookServer(p WebhookProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(nil, nil, p, fakeSweeper{}, time.Second)
	r := gin.New()
	r.POST("/webhooks/gmail", h.GmailWebhook)
	return r
}

func pushBody(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()
	data := base64.StdEncoding.EncodeToString([]byte(payload))
	return bytes.NewBufferString(`{"message":{"data":"` + data + `","messageId":"pm-1"},"subscription":"projects/p/subscriptions/s"}`)
}

func TestGmailWebhookDecodesNotification(t *testing.T) {
	processor := &fakeProcessor{}
	r := webhookServer(processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail",
		pushBody(t, `{"emailAddress":"user@example.com","historyId":4215}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, processor.notifications, 1)
	assert.Equal(t, history.Notification{EmailAddress: "user@example.com", HistoryID: 4215}, processor.notifications[0])
}

func TestGmailWebhookAcksMalformedEnvelope(t *testing.T) {
	processor := &fakeProcessor{}
	r := webhookServer(processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "push delivery must never be retried for bad payloads")
	assert.Empty(t, processor.notifications)
}

func TestGmailWebhookAcksBadBase64(t *testing.T) {
	processor := &fakeProcessor{}
	r := webhookServer(processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail",
		bytes.NewBufferString(`{"message":{"data":"%%%not-base64%%%"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, processor.notifications)
}

func TestGmailWebhookAcksIncompleteNotification(t *testing.T) {
	processor := &fakeProcessor{}
	r := webhookServer(processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail",
		pushBody(t, `{"emailAddress":"","historyId":0}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, processor.notifications)
}

func TestGmailWebhookAcksProcessingFailure(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("history fetch failed")}
	r := webhookServer(processor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail",
		pushBody(t, `{"emailAddress":"user@example.com","historyId":4215}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "processing failures are recovered by the cursor, not by redelivery")
	require.Len(t, processor.notifications, 1)
}
