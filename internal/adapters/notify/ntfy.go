package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

const (
	DefaultNtfyServer = "https://ntfy.sh"
	DefaultNtfyTopic  = "glassify"
)

// NtfyNotifier publishes notifications to an ntfy topic
type NtfyNotifier struct {
	server string
	topic  string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewNtfyNotifier creates a new ntfy notifier. token is optional.
func NewNtfyNotifier(server, topic, token string, timeout time.Duration, logger *zap.Logger) *NtfyNotifier {
	if server == "" {
		server = DefaultNtfyServer
	}
	if topic == "" {
		topic = DefaultNtfyTopic
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfyNotifier{
		server: strings.TrimRight(server, "/"),
		topic:  topic,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify posts the message body with title, priority and click headers
func (n *NtfyNotifier) Notify(ctx context.Context, note *core.Notification) error {
	url := n.server + "/" + n.topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(note.Message))
	if err != nil {
		return fmt.Errorf("failed to build ntfy request: %w", err)
	}
	req.Header.Set("Title", note.Title)
	if note.Priority != "" {
		req.Header.Set("Priority", note.Priority)
	}
	if note.DeepLink != "" {
		req.Header.Set("Click", note.DeepLink)
	}
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish to ntfy: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	n.logger.Debug("Published ntfy notification",
		zap.String("topic", n.topic),
		zap.String("title", note.Title))
	return nil
}
