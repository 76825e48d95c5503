package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakePublisher struct {
	mu    sync.Mutex
	sent  []Notification
	fail  map[string]bool
	count int
}

func (p *fakePublisher) Publish(_ context.Context, n *Notification) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[n.Recipient] {
		return "", errors.New("transport down")
	}
	p.count++
	p.sent = append(p.sent, *n)
	return "1-" + n.ID, nil
}

func TestGateway_NotifyDepartment(t *testing.T) {
	pub := &fakePublisher{}
	g := NewGateway(pub, 10)

	if err := g.NotifyDepartment(context.Background(), "ICU", "Resource allocation updated"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 published notification, got %d", len(pub.sent))
	}
	if pub.sent[0].Channel != ChannelDepartment || pub.sent[0].Recipient != "ICU" {
		t.Errorf("unexpected notification: %+v", pub.sent[0])
	}

	list := g.ListByRecipient("ICU", 10)
	if len(list) != 1 || list[0].Status != StatusSent || list[0].SentAt == nil {
		t.Errorf("expected one sent notification in history, got %+v", list)
	}
	if list[0].StreamID == "" {
		t.Error("expected stream id to be recorded")
	}
}

func TestGateway_NotifyStaff_AttemptsEveryRecipient(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{"S-2": true}}
	g := NewGateway(pub, 10)

	err := g.NotifyStaff(context.Background(), []string{"S-1", "S-2", "S-3"}, "Your assignment has been updated")
	if err == nil {
		t.Fatal("expected error for the failed recipient")
	}
	if pub.count != 2 {
		t.Errorf("expected 2 successful publishes, got %d", pub.count)
	}

	stats := g.Stats()
	if stats[StatusSent] != 2 || stats[StatusFailed] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
	failed := g.ListByRecipient("S-2", 10)
	if len(failed) != 1 || failed[0].Error == "" {
		t.Errorf("expected failed notification with error, got %+v", failed)
	}
}

func TestGateway_NotifyStaff_Empty(t *testing.T) {
	pub := &fakePublisher{}
	g := NewGateway(pub, 10)
	if err := g.NotifyStaff(context.Background(), nil, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.count != 0 {
		t.Errorf("expected nothing published, got %d", pub.count)
	}
}

func TestGateway_HistoryBounded(t *testing.T) {
	g := NewGateway(&fakePublisher{}, 3)
	ctx := context.Background()
	for _, dept := range []string{"A", "B", "C", "D", "E"} {
		if err := g.NotifyDepartment(ctx, dept, "msg"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all := g.ListByRecipient("", 10)
	if len(all) != 3 {
		t.Fatalf("expected 3 remembered notifications, got %d", len(all))
	}
	if all[0].Recipient != "E" || all[2].Recipient != "C" {
		t.Errorf("expected newest first C..E, got %s..%s", all[0].Recipient, all[2].Recipient)
	}
	if len(g.ListByRecipient("A", 10)) != 0 {
		t.Error("expected oldest notification to be evicted")
	}
}

func TestGateway_ListLimit(t *testing.T) {
	g := NewGateway(&fakePublisher{}, 10)
	for i := 0; i < 4; i++ {
		_ = g.NotifyDepartment(context.Background(), "ER", "msg")
	}
	if got := len(g.ListByRecipient("ER", 2)); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestGateway_Retry(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{"S-1": true}}
	g := NewGateway(pub, 10)
	ctx := context.Background()

	_ = g.NotifyStaff(ctx, []string{"S-1"}, "assigned")
	failed := g.ListByRecipient("S-1", 1)[0]

	if _, err := g.Retry(ctx, failed.ID); err == nil {
		t.Fatal("expected retry to fail while transport is down")
	}

	pub.fail = nil
	n, err := g.Retry(ctx, failed.ID)
	if err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	if n.Status != StatusSent || n.Error != "" {
		t.Errorf("expected sent status after retry, got %+v", n)
	}

	if _, err := g.Retry(ctx, failed.ID); err == nil {
		t.Error("expected error retrying a sent notification")
	}
	if _, err := g.Retry(ctx, "missing"); err == nil {
		t.Error("expected error retrying an unknown notification")
	}
}

type blockingPublisher struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) Publish(_ context.Context, n *Notification) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	p.entered <- struct{}{}
	<-p.release
	return "1-" + n.ID, nil
}

func TestGateway_ConcurrentRetryPublishesOnce(t *testing.T) {
	g := NewGateway(&fakePublisher{fail: map[string]bool{"S-1": true}}, 10)
	ctx := context.Background()
	_ = g.NotifyStaff(ctx, []string{"S-1"}, "assigned")
	id := g.ListByRecipient("S-1", 1)[0].ID

	bp := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	g.publisher = bp

	done := make(chan error, 1)
	go func() {
		_, err := g.Retry(ctx, id)
		done <- err
	}()
	<-bp.entered

	if _, err := g.Retry(ctx, id); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("expected ErrNotRetryable while a retry is in flight, got %v", err)
	}
	if stats := g.Stats(); stats[StatusRetrying] != 1 {
		t.Errorf("expected 1 retrying notification, got %v", stats)
	}

	close(bp.release)
	if err := <-done; err != nil {
		t.Fatalf("first retry failed: %v", err)
	}
	if bp.calls != 1 {
		t.Errorf("expected one publish, got %d", bp.calls)
	}
	if n, _ := g.Get(id); n.Status != StatusSent {
		t.Errorf("expected sent, got %s", n.Status)
	}
}

func TestGateway_RetryErrors(t *testing.T) {
	g := NewGateway(&fakePublisher{}, 10)
	ctx := context.Background()
	_ = g.NotifyDepartment(ctx, "ICU", "ready")
	id := g.ListByRecipient("ICU", 1)[0].ID

	if _, err := g.Retry(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := g.Retry(ctx, id); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("expected ErrNotRetryable for a sent notification, got %v", err)
	}
}

func TestGateway_GetReturnsCopy(t *testing.T) {
	g := NewGateway(&fakePublisher{}, 10)
	_ = g.NotifyDepartment(context.Background(), "ICU", "msg")
	id := g.ListByRecipient("ICU", 1)[0].ID

	n, ok := g.Get(id)
	if !ok {
		t.Fatal("expected notification to be found")
	}
	n.Body = "changed"
	again, _ := g.Get(id)
	if again.Body != "msg" {
		t.Error("expected Get to return a copy")
	}
	if _, ok := g.Get("missing"); ok {
		t.Error("expected missing id to report not found")
	}
}

func TestTeePublisher_MirrorsOnlySuccessfulDeliveries(t *testing.T) {
	primary := &fakePublisher{fail: map[string]bool{"ER": true}}
	mirror := &fakePublisher{}
	g := NewGateway(NewTeePublisher(primary, mirror), 10)

	if err := g.NotifyDepartment(context.Background(), "ICU", "beds ready"); err != nil {
		t.Fatalf("NotifyDepartment() error: %v", err)
	}
	if err := g.NotifyDepartment(context.Background(), "ER", "beds ready"); err == nil {
		t.Fatal("expected primary failure to surface")
	}

	if mirror.count != 1 || mirror.sent[0].Recipient != "ICU" {
		t.Errorf("expected only the ICU delivery mirrored, got %+v", mirror.sent)
	}
}

func TestTeePublisher_MirrorFailureIgnored(t *testing.T) {
	primary := &fakePublisher{}
	mirror := &fakePublisher{fail: map[string]bool{"ICU": true}}
	tee := NewTeePublisher(primary, mirror)

	id, err := tee.Publish(context.Background(), &Notification{ID: "N-1", Recipient: "ICU"})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if id != "1-N-1" {
		t.Errorf("expected primary stream id, got %q", id)
	}
}
