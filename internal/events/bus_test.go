package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	challengeID := uuid.New()
	topic := ChallengeTopic(challengeID)

	sub := bus.Subscribe(topic)
	defer sub.Close()

	bus.Publish(Update{
		Topic:       topic,
		Kind:        "proof_submitted",
		ChallengeID: challengeID,
		UserID:      42,
	})

	select {
	case update := <-sub.Updates():
		if update.Kind != "proof_submitted" {
			t.Errorf("expected proof_submitted, got %s", update.Kind)
		}
		if update.UserID != 42 {
			t.Errorf("expected user 42, got %d", update.UserID)
		}
		if update.At.IsZero() {
			t.Error("expected publish timestamp to be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestSubscriptionOrdering(t *testing.T) {
	bus := NewBus()
	topic := UserTopic(7)

	sub := bus.Subscribe(topic)
	defer sub.Close()

	kinds := []string{"join_request", "request_decided", "participant_joined"}
	for _, kind := range kinds {
		bus.Publish(Update{Topic: topic, Kind: kind})
	}

	for _, want := range kinds {
		select {
		case update := <-sub.Updates():
			if update.Kind != want {
				t.Errorf("expected %s, got %s", want, update.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	bus := NewBus()

	a := bus.Subscribe(UserTopic(1))
	defer a.Close()
	b := bus.Subscribe(UserTopic(2))
	defer b.Close()

	bus.Publish(Update{Topic: UserTopic(1), Kind: "stake_settled"})

	select {
	case <-a.Updates():
	case <-time.After(time.Second):
		t.Fatal("subscriber on topic did not receive update")
	}

	select {
	case update := <-b.Updates():
		t.Fatalf("subscriber on other topic received %s", update.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewBus()
	topic := UserTopic(3)

	sub := bus.Subscribe(topic)
	sub.Close()

	// Publish after close must not panic or deliver
	bus.Publish(Update{Topic: topic, Kind: "stake_settled"})

	if _, ok := <-sub.Updates(); ok {
		t.Error("expected closed channel")
	}

	// Closing twice is safe
	sub.Close()
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	topic := UserTopic(4)

	sub := bus.Subscribe(topic)
	defer sub.Close()

	// Overflow the buffer; Publish must return without a reader
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(Update{Topic: topic, Kind: "vote_cast"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
