package chat_tools

import (
	"context"
	"sync"
	"time"
)

// Reply is a bot message waiting to be read.
type Reply struct {
	Channel string    `json:"channel"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sent_at"`
}

// Outbox is a chat.Sender that queues replies per channel until an MCP
// client reads them.
type Outbox struct {
	mu      sync.Mutex
	queues  map[string][]Reply
	changed chan struct{}
	now     func() time.Time
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		queues:  make(map[string][]Reply),
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Send queues text for channelID.
func (o *Outbox) Send(_ context.Context, channelID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.queues[channelID] = append(o.queues[channelID], Reply{
		Channel: channelID,
		Text:    text,
		SentAt:  o.now().UTC(),
	})
	// Wake every waiter.
	close(o.changed)
	o.changed = make(chan struct{})
	return nil
}

// Drain removes and returns the queued replies of channelID, oldest first.
func (o *Outbox) Drain(channelID string) []Reply {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.drainLocked(channelID)
}

// Wait drains channelID, waiting up to timeout for a first reply when the
// queue is empty.
func (o *Outbox) Wait(ctx context.Context, channelID string, timeout time.Duration) []Reply {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		o.mu.Lock()
		if replies := o.drainLocked(channelID); len(replies) > 0 || timeout <= 0 {
			o.mu.Unlock()
			return replies
		}
		changed := o.changed
		o.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return o.Drain(channelID)
		case <-ctx.Done():
			return nil
		}
	}
}

func (o *Outbox) drainLocked(channelID string) []Reply {
	replies := o.queues[channelID]
	delete(o.queues, channelID)
	return replies
}
