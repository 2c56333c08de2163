package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
	"github.com/atticusjxn/flynnai-sub001/pkg/logging"
	"github.com/atticusjxn/flynnai-sub001/pkg/metrics"
)

// Audience identifies who a notification is addressed to.
type Audience string

const (
	AudienceOperators Audience = "operators"
	AudienceSecurity  Audience = "security"
	AudienceOwner     Audience = "owner"
)

// Event is the shared notification payload consumed by all three
// resilience services. Dispatch is fire-and-forget: channel failures are
// logged and must never abort the triggering operation.
type Event struct {
	ID        string                 `json:"id"`
	Audience  Audience               `json:"audience"`
	Severity  errors.Severity        `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Channel delivers events to a single destination.
type Channel interface {
	Send(ctx context.Context, event Event) error
	Name() string
}

// Dispatcher fans events out to registered channels.
type Dispatcher struct {
	channels []Channel
	logger   *logging.Logger
	metrics  *metrics.Metrics
	mutex    sync.RWMutex
}

// NewDispatcher creates a dispatcher with the given channels.
func NewDispatcher(logger *logging.Logger, m *metrics.Metrics, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Dispatcher{
		channels: channels,
		logger:   logger,
		metrics:  m,
	}
}

// AddChannel registers an additional channel.
func (d *Dispatcher) AddChannel(channel Channel) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.channels = append(d.channels, channel)
	d.logger.Info("Notification channel added", "channel", channel.Name())
}

// Notify sends the event to every registered channel. Failures are
// logged per channel; Notify itself never returns an error because no
// caller is allowed to fail on notification problems.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mutex.RLock()
	channels := make([]Channel, len(d.channels))
	copy(channels, d.channels)
	d.mutex.RUnlock()

	for _, channel := range channels {
		if err := channel.Send(ctx, event); err != nil {
			d.metrics.RecordNotificationFailed(channel.Name())
			d.logger.Error("Notification channel failed",
				"channel", channel.Name(),
				"event_id", event.ID,
				"title", event.Title,
				"error", err,
			)
			continue
		}
		d.metrics.RecordNotificationSent(channel.Name())
	}
}
