package events

import "testing"

func TestBus_PublishReachesSubscribers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(MessageCreated, func(payload any) {
		got = append(got, "first")
	})
	bus.Subscribe(MessageCreated, func(payload any) {
		got = append(got, "second")
	})

	bus.Publish(MessageCreated, nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 handlers to run, got %d", len(got))
	}
	if got[0] != "first" || got[1] != "second" {
		t.Fatalf("handlers ran out of registration order: %v", got)
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := NewBus()

	created := 0
	bus.Subscribe(MessageCreated, func(payload any) { created++ })

	bus.Publish(MessageUpdated, nil)
	if created != 0 {
		t.Fatalf("handler for %s ran on %s", MessageCreated, MessageUpdated)
	}

	bus.Publish(MessageCreated, nil)
	if created != 1 {
		t.Fatalf("expected 1 run, got %d", created)
	}
}

func TestBus_WildcardSubscriber(t *testing.T) {
	bus := NewBus()

	all := 0
	bus.Subscribe("*", func(payload any) { all++ })

	bus.Publish(MessageCreated, nil)
	bus.Publish(MessageDeleted, nil)

	if all != 2 {
		t.Fatalf("wildcard handler expected 2 runs, got %d", all)
	}
}

func TestBus_PanicDoesNotAbortRemainingHandlers(t *testing.T) {
	bus := NewBus()

	ran := false
	bus.Subscribe(UserCreated, func(payload any) { panic("boom") })
	bus.Subscribe(UserCreated, func(payload any) { ran = true })

	bus.Publish(UserCreated, nil)

	if !ran {
		t.Fatal("handler after the panicking one did not run")
	}
}

func TestBus_PayloadDelivered(t *testing.T) {
	bus := NewBus()

	var got *MessageUpdatedPayload
	bus.Subscribe(MessageUpdated, func(payload any) {
		got = payload.(*MessageUpdatedPayload)
	})

	bus.Publish(MessageUpdated, &MessageUpdatedPayload{OldSubject: "before", Changed: true})

	if got == nil || got.OldSubject != "before" || !got.Changed {
		t.Fatalf("payload not delivered intact: %+v", got)
	}
}
