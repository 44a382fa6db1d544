package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/ratelimit"
)

const (
	defaultQueueSize  = 1024
	defaultMaxRetries = 3
	deliveryTimeout   = 30 * time.Second
)

// webhookExecutor is the part of *discordgo.Session the notifier uses.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts events to a Discord webhook from a single background
// worker. Notify only enqueues.
type DiscordNotifier struct {
	sender     webhookExecutor
	webhookID  string
	token      string
	limiter    *ratelimit.Limiter
	log        *logger.Logger
	maxRetries int

	queue chan core.NotificationEvent
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var _ core.Notifier = (*DiscordNotifier)(nil)

func NewDiscordNotifier(cfg config.NotificationsConfig, log *logger.Logger) (*DiscordNotifier, error) {
	webhookID, token, err := ParseWebhookURL(cfg.DiscordWebhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	// 429s are handled here so the owned limiter sees them
	session.ShouldRetryOnRateLimit = false

	return newDiscordNotifier(session, webhookID, token, cfg, log), nil
}

func newDiscordNotifier(sender webhookExecutor, webhookID, token string, cfg config.NotificationsConfig, log *logger.Logger) *DiscordNotifier {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	n := &DiscordNotifier{
		sender:    sender,
		webhookID: webhookID,
		token:     token,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.Burst,
		}),
		log:        log.WithComponent("notify.discord"),
		maxRetries: defaultMaxRetries,
		queue:      make(chan core.NotificationEvent, queueSize),
	}

	n.wg.Add(1)
	go n.run()
	return n
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (webhookID, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "webhooks" && i+2 < len(parts) && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q has no /webhooks/{id}/{token} path", u.Redacted())
}

// Notify enqueues event without blocking. Events arriving after Close or
// while the queue is full are dropped and logged.
func (n *DiscordNotifier) Notify(event core.NotificationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.log.Warnw("Notification dropped after close", "kind", event.Kind)
		return
	}

	select {
	case n.queue <- event:
	default:
		n.log.Warnw("Notification queue full, dropping event",
			"kind", event.Kind,
			"platform", event.Platform,
			"program", event.ProgramSlug,
		)
		n.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (n *DiscordNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting events and waits until queued ones are delivered.
func (n *DiscordNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}

func (n *DiscordNotifier) run() {
	defer n.wg.Done()
	for event := range n.queue {
		n.deliver(event)
	}
}

func (n *DiscordNotifier) deliver(event core.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	params := &discordgo.WebhookParams{
		Username: "bountywatch",
		Embeds:   []*discordgo.MessageEmbed{Render(event)},
	}

	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			n.log.Warnw("Notification delivery timed out", "kind", event.Kind, "error", err)
			return
		}

		_, err := n.sender.WebhookExecute(n.webhookID, n.token, false, params)
		if err == nil {
			return
		}

		if retryAfter, ok := rateLimited(err); ok {
			n.log.Debugw("Discord rate limit hit", "retry_after", retryAfter, "attempt", attempt+1)
			n.limiter.PauseFor(retryAfter)
			continue
		}

		n.log.Errorw("Failed to deliver notification",
			"kind", event.Kind,
			"platform", event.Platform,
			"program", event.ProgramSlug,
			"error", err,
		)
		return
	}

	n.log.Errorw("Giving up on notification after repeated rate limits",
		"kind", event.Kind,
		"attempts", n.maxRetries+1,
	)
}

func rateLimited(err error) (time.Duration, bool) {
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) && rl.RateLimit != nil && rl.TooManyRequests != nil {
		return rl.RetryAfter, true
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == 429 {
		return time.Second, true
	}
	return 0, false
}
