package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sample() *core.Notification {
	return &core.Notification{
		Recipient: "alice@example.com",
		Title:     "Upcoming Deadline!",
		Message:   "Reminder: 'Lab <report>' is due at 03:04 PM",
		DeepLink:  "googlegmail:///v1/account/me/thread/abc",
		Priority:  "high",
	}
}

func TestNtfyNotifier(t *testing.T) {
	var got *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNtfyNotifier(srv.URL+"/", "triage-test", "tk_secret", time.Second, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), sample()))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/triage-test", got.URL.Path)
	assert.Equal(t, "Upcoming Deadline!", got.Header.Get("Title"))
	assert.Equal(t, "high", got.Header.Get("Priority"))
	assert.Equal(t, "googlegmail:///v1/account/me/thread/abc", got.Header.Get("Click"))
	assert.Equal(t, "Bearer tk_secret", got.Header.Get("Authorization"))
	assert.Equal(t, "Reminder: 'Lab <report>' is due at 03:04 PM", body)
}

func TestNtfyNotifierReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewNtfyNotifier(srv.URL, "", "", time.Second, zap.NewNop())
	err := n.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{MessageID: 1}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := &TelegramNotifier{api: sender, chatID: 42, logger: zap.NewNop()}

	require.NoError(t, n.Notify(context.Background(), sample()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, "<b>Upcoming Deadline!</b>\nReminder: &#39;Lab &lt;report&gt;&#39; is due at 03:04 PM\ngooglegmail:///v1/account/me/thread/abc", msg.Text)
	assert.False(t, msg.DisableNotification)
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	bad := &TelegramNotifier{api: &fakeSender{err: errors.New("blocked")}, chatID: 1, logger: zap.NewNop()}
	m := MultiNotifier{NewLogNotifier(zap.NewNop()), bad}

	err := m.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}
