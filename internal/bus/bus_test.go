package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opensource-insurance/heron/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	_, err := b.Subscribe(ctx, "tenant-001", domain.TopicClaimReceived, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"claimId": "claim-001"})
	if err := b.Publish(ctx, "tenant-001", domain.TopicClaimReceived, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Topic != domain.TopicClaimReceived {
			t.Errorf("topic = %s, want %s", msg.Topic, domain.TopicClaimReceived)
		}
		if msg.TenantID != "tenant-001" {
			t.Errorf("tenantID = %s", msg.TenantID)
		}
		var decoded map[string]string
		if err := json.Unmarshal(msg.Payload, &decoded); err != nil || decoded["claimId"] != "claim-001" {
			t.Errorf("payload did not survive: %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelBusTenantIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var count int
	_, err := b.Subscribe(ctx, "tenant-002", domain.TopicClaimReceived, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := b.Publish(ctx, "tenant-001", domain.TopicClaimReceived, []byte("{}")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("subscriber received %d cross-tenant messages", count)
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	const subscribers = 3
	var wg sync.WaitGroup
	wg.Add(subscribers)

	for i := 0; i < subscribers; i++ {
		once := sync.Once{}
		_, err := b.Subscribe(ctx, "tenant-001", domain.TopicClaimTransitioned, func(ctx context.Context, msg *domain.Message) error {
			once.Do(wg.Done)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
	}

	if err := b.Publish(ctx, "tenant-001", domain.TopicClaimTransitioned, []byte("{}")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all subscribers received the message")
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var count int
	sub, err := b.Subscribe(ctx, "tenant-001", domain.TopicNotify, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if sub.Topic() != domain.TopicNotify {
		t.Errorf("topic = %s", sub.Topic())
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}

	b.Publish(ctx, "tenant-001", domain.TopicNotify, []byte("{}"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("unsubscribed handler received %d messages", count)
	}
}

func TestChannelBusRequiresTenantID(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	if err := b.Publish(ctx, "", "topic", []byte("{}")); err == nil {
		t.Error("expected error for empty tenantID on publish")
	}
	if _, err := b.Subscribe(ctx, "", "topic", nil); err == nil {
		t.Error("expected error for empty tenantID on subscribe")
	}
}

func TestChannelBusClosed(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Ping(ctx); err != nil {
		t.Errorf("ping on open bus failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := b.Publish(ctx, "tenant-001", "topic", []byte("{}")); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping to fail on closed bus")
	}

	// Close is idempotent.
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestNewBusFactory(t *testing.T) {
	t.Run("Channel", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Errorf("expected *ChannelBus, got %T", b)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported bus type")
		}
	})
}
