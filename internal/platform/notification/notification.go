// Package notification delivers allocation messages to departments and staff
// through a pluggable publisher, keeps a bounded history of what was sent and
// exposes that history over HTTP.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel identifies who a notification is addressed to.
type Channel string

const (
	ChannelDepartment Channel = "department"
	ChannelStaff      Channel = "staff"
)

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusRetrying = "retrying"
)

var (
	ErrNotFound     = errors.New("notification not found")
	ErrNotRetryable = errors.New("notification is not in failed status")
)

// Notification is a single outbound message.
type Notification struct {
	ID        string     `json:"id"`
	Channel   Channel    `json:"channel"`
	Recipient string     `json:"recipient"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	StreamID  string     `json:"stream_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Publisher hands a notification to the delivery transport and returns the
// transport's message id.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) (string, error)
}

// DefaultHistorySize bounds how many notifications the gateway remembers.
const DefaultHistorySize = 1000

// Gateway sends notifications through a Publisher and records the outcome.
type Gateway struct {
	publisher Publisher
	limit     int

	mu      sync.RWMutex
	order   []string
	byID    map[string]*Notification
	nowFunc func() time.Time
}

func NewGateway(pub Publisher, historySize int) *Gateway {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Gateway{
		publisher: pub,
		limit:     historySize,
		byID:      make(map[string]*Notification),
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// NotifyDepartment sends message to everyone subscribed to department.
func (g *Gateway) NotifyDepartment(ctx context.Context, department, message string) error {
	return g.send(ctx, ChannelDepartment, department, message)
}

// NotifyStaff sends message to each staff member. Every recipient is attempted
// even when an earlier one fails.
func (g *Gateway) NotifyStaff(ctx context.Context, staffIDs []string, message string) error {
	var errs []error
	for _, id := range staffIDs {
		if err := g.send(ctx, ChannelStaff, id, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) send(ctx context.Context, ch Channel, recipient, body string) error {
	n := &Notification{
		ID:        uuid.New().String(),
		Channel:   ch,
		Recipient: recipient,
		Body:      body,
		CreatedAt: g.nowFunc(),
	}
	err := g.deliver(ctx, n)
	g.remember(n)
	return err
}

func (g *Gateway) deliver(ctx context.Context, n *Notification) error {
	streamID, err := g.publisher.Publish(ctx, n)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return fmt.Errorf("notify %s %s: %w", n.Channel, n.Recipient, err)
	}
	sentAt := g.nowFunc()
	n.Status = StatusSent
	n.StreamID = streamID
	n.SentAt = &sentAt
	n.Error = ""
	return nil
}

func (g *Gateway) remember(n *Notification) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.byID[n.ID] = n
	g.order = append(g.order, n.ID)
	if len(g.order) > g.limit {
		evicted := g.order[0]
		g.order = g.order[1:]
		delete(g.byID, evicted)
	}
}

// Get returns a copy of the notification with the given id.
func (g *Gateway) Get(id string) (*Notification, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// ListByRecipient returns up to limit notifications for recipient, newest
// first. An empty recipient matches everyone.
func (g *Gateway) ListByRecipient(recipient string, limit int) []Notification {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []Notification{}
	for i := len(g.order) - 1; i >= 0 && len(out) < limit; i-- {
		n := g.byID[g.order[i]]
		if recipient == "" || n.Recipient == recipient {
			out = append(out, *n)
		}
	}
	return out
}

// Retry re-publishes a failed notification. The notification is claimed
// under the write lock, so concurrent retries publish it at most once.
func (g *Gateway) Retry(ctx context.Context, id string) (*Notification, error) {
	g.mu.Lock()
	n, ok := g.byID[id]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if n.Status != StatusFailed {
		status := n.Status
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %q is %s", ErrNotRetryable, id, status)
	}
	n.Status = StatusRetrying
	g.mu.Unlock()

	err := g.deliver(ctx, n)
	cp, _ := g.Get(id)
	return cp, err
}

// Stats returns counts of remembered notifications grouped by status.
func (g *Gateway) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := map[string]int{StatusSent: 0, StatusFailed: 0}
	for _, n := range g.byID {
		stats[n.Status]++
	}
	return stats
}
