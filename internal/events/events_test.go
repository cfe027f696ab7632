package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestEmitLogsPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	Emit(context.Background(), failingPublisher{err: errors.New("broker down")}, zap.New(core), Event{Type: PaymentConfirmed, User: "ana@campus.edu"})

	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["event_type"]; got != PaymentConfirmed {
		t.Fatalf("event_type field = %v", got)
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	rec := &Recorder{}
	Emit(context.Background(), rec, nil, Event{Type: WalletRecharged})
	got := rec.Events()
	if len(got) != 1 || got[0].Timestamp.IsZero() {
		t.Fatalf("expected stamped event, got %+v", got)
	}
}

func TestMultiReturnsFirstErrorButDeliversAll(t *testing.T) {
	rec := &Recorder{}
	first := errors.New("first")
	m := Multi{failingPublisher{err: first}, rec, failingPublisher{err: errors.New("second")}}

	if err := m.Publish(context.Background(), Event{Type: WalletDebited}); !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(rec.Events()) != 1 {
		t.Fatalf("recorder should still receive the event")
	}
}

func TestRedisPublisherSurfacesConnectionError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	p := NewRedisPublisher(rdb, "test")
	if err := p.Publish(context.Background(), Event{Type: WalletRecharged}); err == nil {
		t.Fatalf("expected publish error against closed port")
	}
}
