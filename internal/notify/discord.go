package notify

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Notifier delivers a plain-text message to an operator channel. Deliver
// reports failure through its return value and never panics or errors.
// Enabled is false when no channel is configured; Deliver then always fails
// and retrying is pointless.
type Notifier interface {
	Enabled() bool
	Deliver(ctx context.Context, message string) bool
}

// DiscordNotifier posts messages to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewDiscordNotifier builds a notifier. An empty URL disables delivery.
func NewDiscordNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DiscordNotifier{webhookURL: webhookURL, timeout: timeout, logger: logger}
}

// Enabled reports whether a webhook URL is set.
func (n *DiscordNotifier) Enabled() bool {
	return n.webhookURL != ""
}

type discordMessage struct {
	Content string `json:"content"`
}

// Deliver posts message as the webhook's content.
func (n *DiscordNotifier) Deliver(ctx context.Context, message string) bool {
	if !n.Enabled() {
		n.logger.Warn("discord webhook not configured; skipping notification")
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	agent := fiber.Post(n.webhookURL)
	agent.Timeout(n.timeout)
	agent.JSON(discordMessage{Content: message})
	if err := agent.Parse(); err != nil {
		n.logger.Error("invalid discord webhook url", zap.Error(err))
		return false
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		n.logger.Warn("discord notification failed", zap.Errors("errors", errs))
		return false
	}
	if code < 200 || code > 299 {
		n.logger.Warn("discord notification rejected",
			zap.Int("status", code),
			zap.ByteString("body", body))
		return false
	}
	n.logger.Debug("discord notification sent")
	return true
}
