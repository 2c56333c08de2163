package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atticusjxn/flynnai-sub001/pkg/errors"
)

type recordingChannel struct {
	name   string
	fail   bool
	mutex  sync.Mutex
	events []Event
}

func (c *recordingChannel) Send(ctx context.Context, event Event) error {
	if c.fail {
		return fmt.Errorf("delivery failed")
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) count() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.events)
}

func TestDispatcher_FansOutToAllChannels(t *testing.T) {
	first := &recordingChannel{name: "first"}
	second := &recordingChannel{name: "second"}
	dispatcher := NewDispatcher(nil, nil, first, second)

	dispatcher.Notify(context.Background(), Event{
		Audience: AudienceOperators,
		Severity: errors.SeverityHigh,
		Title:    "something happened",
	})

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestDispatcher_FailingChannelDoesNotBlockOthers(t *testing.T) {
	broken := &recordingChannel{name: "broken", fail: true}
	working := &recordingChannel{name: "working"}
	dispatcher := NewDispatcher(nil, nil, broken, working)

	dispatcher.Notify(context.Background(), Event{Title: "still delivered"})

	assert.Equal(t, 1, working.count())
}

func TestDispatcher_FillsIDAndTimestamp(t *testing.T) {
	channel := &recordingChannel{name: "sink"}
	dispatcher := NewDispatcher(nil, nil, channel)

	dispatcher.Notify(context.Background(), Event{Title: "bare event"})

	require.Equal(t, 1, channel.count())
	delivered := channel.events[0]
	assert.NotEmpty(t, delivered.ID)
	assert.False(t, delivered.Timestamp.IsZero())
}

func TestDispatcher_AddChannel(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	late := &recordingChannel{name: "late"}
	dispatcher.AddChannel(late)

	dispatcher.Notify(context.Background(), Event{Title: "after registration"})

	assert.Equal(t, 1, late.count())
}

func TestInAppChannel_EvictsOldestAtCapacity(t *testing.T) {
	inbox := NewInAppChannel(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, inbox.Send(context.Background(), Event{Title: "event-" + strconv.Itoa(i)}))
	}

	recent := inbox.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "event-4", recent[0].Title, "newest first")
	assert.Equal(t, "event-2", recent[2].Title, "oldest surviving entry last")
}

func TestInAppChannel_RecentLimit(t *testing.T) {
	inbox := NewInAppChannel(10)
	for i := 0; i < 5; i++ {
		require.NoError(t, inbox.Send(context.Background(), Event{Title: "event-" + strconv.Itoa(i)}))
	}

	assert.Len(t, inbox.Recent(2), 2)
	assert.Len(t, inbox.Recent(100), 5)
	assert.Empty(t, NewInAppChannel(10).Recent(5))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "log", NewLogChannel(nil).Name())
	assert.Equal(t, "in_app", NewInAppChannel(1).Name())
	assert.Equal(t, "email", NewEmailChannel(nil, "ops@example.com").Name())
	assert.Equal(t, "webhook", NewWebhookChannel(nil, "https://example.com/hook").Name())
}

func TestLogChannel_SendNeverFails(t *testing.T) {
	channel := NewLogChannel(nil)
	for _, severity := range []errors.Severity{
		errors.SeverityLow, errors.SeverityMedium, errors.SeverityHigh, errors.SeverityCritical,
	} {
		assert.NoError(t, channel.Send(context.Background(), Event{
			Severity: severity,
			Title:    "severity " + string(severity),
			Metadata: map[string]interface{}{"k": "v"},
		}))
	}
}
