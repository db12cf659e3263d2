package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"splice/internal/config"
	"splice/internal/report"
)

const userAgent = "splice/0.1.0"

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, doc report.Document) error
	NotifySessionFailed(ctx context.Context, outcome report.Outcome) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, doc report.Document) error {
	duration := doc.FinishedAt.Sub(doc.StartedAt).Round(time.Second)
	if duration < 0 || doc.FinishedAt.IsZero() {
		duration = 0
	}

	s := doc.Summary
	var message strings.Builder
	fmt.Fprintf(&message, "%d sessions in %s: %d succeeded", s.Total, duration, s.Succeeded)
	if s.Fallback > 0 {
		fmt.Fprintf(&message, ", %d with fallback", s.Fallback)
	}
	if s.Partial > 0 {
		fmt.Fprintf(&message, ", %d partial", s.Partial)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&message, ", %d failed", s.Failed)
	}
	if len(s.MissingCue) > 0 {
		fmt.Fprintf(&message, "\nMissing cue: %s", strings.Join(s.MissingCue, ", "))
	}

	data := payload{
		title:   "splice - Run Complete",
		message: message.String(),
		tags:    []string{"splice", "run", "completed"},
	}
	switch doc.ExitCode {
	case report.ExitFailure:
		data.title = "splice - Run Complete (with failures)"
		data.priority = "high"
	case report.ExitPartial:
		data.title = "splice - Run Complete (partial)"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionFailed(ctx context.Context, outcome report.Outcome) error {
	var builder strings.Builder
	builder.WriteString("Session ")
	builder.WriteString(outcome.SessionID)
	builder.WriteString(" failed")
	if kind := strings.TrimSpace(outcome.ErrorKind); kind != "" {
		builder.WriteString(" (")
		builder.WriteString(kind)
		builder.WriteString(")")
	}
	if msg := strings.TrimSpace(outcome.Error); msg != "" {
		builder.WriteString(": ")
		builder.WriteString(msg)
	}

	data := payload{
		title:    "splice - Session Failed",
		message:  builder.String(),
		tags:     []string{"splice", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "splice - Test",
		message:  "Notification system test",
		tags:     []string{"splice", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, report.Document) error { return nil }
func (noopService) NotifySessionFailed(context.Context, report.Outcome) error { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
