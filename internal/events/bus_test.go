package events

import (
	"testing"
	"time"

	"execution-core/internal/trade"
)

func ev(id string) TradeEvent {
	return TradeEvent{TradeID: id, Symbol: "BTCUSDT", Side: trade.SideBuy, Status: trade.StatusPending, At: time.Now()}
}

func TestPublishReachesTopicSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsub := b.Subscribe(TopicSubmitted, 4)
	defer unsub()

	b.Publish(TopicSubmitted, ev("t1"))
	b.Publish(TopicExecuted, ev("t2")) // different topic, not delivered

	select {
	case got := <-ch:
		if got.TradeID != "t1" {
			t.Fatalf("TradeID=%s, expected t1", got.TradeID)
		}
		if got.Topic != TopicSubmitted {
			t.Fatalf("Topic=%s, expected %s", got.Topic, TopicSubmitted)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}

	select {
	case got := <-ch:
		t.Fatalf("unexpected event delivered: %+v", got)
	default:
	}
}

func TestSubscribeAllSeesEveryTopic(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsub := b.SubscribeAll(8)
	defer unsub()

	b.Publish(TopicSubmitted, ev("t1"))
	b.Publish(TopicExecuted, ev("t2"))

	got := map[Topic]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			got[e.Topic] = true
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", got)
		}
	}
	if !got[TopicSubmitted] || !got[TopicExecuted] {
		t.Fatalf("topics seen: %v", got)
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsub := b.Subscribe(TopicSubmitted, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(TopicSubmitted, ev("t"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
	// Exactly the buffered event survives.
	if len(ch) != 1 {
		t.Fatalf("buffered events=%d, expected 1", len(ch))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsub := b.Subscribe(TopicFailed, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(TopicFailed, ev("t1"))
}

func TestPublishAfterClose(t *testing.T) {
	b := NewBus()
	ch, _ := b.SubscribeAll(1)
	b.Close()

	b.Publish(TopicSubmitted, ev("t1")) // no-op

	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after bus close")
	}
}
