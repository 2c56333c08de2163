package notify

import (
	"context"
	"sync"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
)

// LogChannel writes notifications to the application logger.
type LogChannel struct {
	logger *logging.Logger
}

// NewLogChannel creates a new logging notification channel.
func NewLogChannel(logger *logging.Logger) *LogChannel {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LogChannel{logger: logger}
}

// Send handles an event by logging it at a level matching its severity.
func (c *LogChannel) Send(ctx context.Context, event Event) error {
	fields := []interface{}{
		"event_id", event.ID,
		"audience", string(event.Audience),
		"severity", string(event.Severity),
		"message", event.Message,
	}
	for key, value := range event.Metadata {
		fields = append(fields, "meta_"+key, value)
	}

	switch event.Severity {
	case errors.SeverityLow:
		c.logger.Info("NOTIFICATION: "+event.Title, fields...)
	case errors.SeverityMedium:
		c.logger.Warn("NOTIFICATION: "+event.Title, fields...)
	case errors.SeverityHigh:
		c.logger.Error("NOTIFICATION: "+event.Title, fields...)
	case errors.SeverityCritical:
		c.logger.Error("CRITICAL NOTIFICATION: "+event.Title, fields...)
	default:
		c.logger.Info("NOTIFICATION: "+event.Title, fields...)
	}
	return nil
}

// Name returns the channel name.
func (c *LogChannel) Name() string {
	return "log"
}

// InAppChannel keeps a bounded in-memory inbox of recent notifications
// for the dashboard to poll. Oldest entries are dropped once the bound
// is reached.
type InAppChannel struct {
	inbox    []Event
	capacity int
	mutex    sync.Mutex
}

// NewInAppChannel creates an in-app channel holding at most capacity events.
func NewInAppChannel(capacity int) *InAppChannel {
	if capacity <= 0 {
		capacity = 100
	}
	return &InAppChannel{
		inbox:    make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Send appends the event to the inbox, evicting the oldest when full.
func (c *InAppChannel) Send(ctx context.Context, event Event) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.inbox) >= c.capacity {
		c.inbox = c.inbox[1:]
	}
	c.inbox = append(c.inbox, event)
	return nil
}

// Name returns the channel name.
func (c *InAppChannel) Name() string {
	return "in_app"
}

// Recent returns up to n most recent events, newest first.
func (c *InAppChannel) Recent(n int) []Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n <= 0 || n > len(c.inbox) {
		n = len(c.inbox)
	}
	out := make([]Event, 0, n)
	for i := len(c.inbox) - 1; i >= len(c.inbox)-n; i-- {
		out = append(out, c.inbox[i])
	}
	return out
}

// EmailChannel is a stub email channel. Delivery formatting is owned by
// the notification transport outside this layer, so it only logs intent.
type EmailChannel struct {
	logger    *logging.Logger
	recipient string
}

// NewEmailChannel creates a stub email channel.
func NewEmailChannel(logger *logging.Logger, recipient string) *EmailChannel {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &EmailChannel{logger: logger, recipient: recipient}
}

// Send logs the email that would be delivered.
func (c *EmailChannel) Send(ctx context.Context, event Event) error {
	c.logger.Info("Email notification queued",
		"recipient", c.recipient,
		"event_id", event.ID,
		"title", event.Title,
		"severity", string(event.Severity),
	)
	return nil
}

// Name returns the channel name.
func (c *EmailChannel) Name() string {
	return "email"
}

// WebhookChannel is a stub webhook channel.
type WebhookChannel struct {
	logger *logging.Logger
	url    string
}

// NewWebhookChannel creates a stub webhook channel.
func NewWebhookChannel(logger *logging.Logger, url string) *WebhookChannel {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &WebhookChannel{logger: logger, url: url}
}

// Send logs the webhook delivery that would be performed.
func (c *WebhookChannel) Send(ctx context.Context, event Event) error {
	c.logger.Info("Webhook notification queued",
		"url", c.url,
		"event_id", event.ID,
		"title", event.Title,
		"severity", string(event.Severity),
	)
	return nil
}

// Name returns the channel name.
func (c *WebhookChannel) Name() string {
	return "webhook"
}
