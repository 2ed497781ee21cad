package eventbus

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New(4)
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Kind: "prime_found", Data: map[string]any{"digits": int64(8)}})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != "prime_found" {
				t.Fatalf("subscriber %d got kind %q", i, ev.Kind)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestSlowSubscriberLosesOldestNotNewest(t *testing.T) {
	b := New(2)
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(Event{Kind: "a"})
	b.Publish(Event{Kind: "b"})
	b.Publish(Event{Kind: "c"}) // buffer full: "a" dropped

	got := []string{(<-ch).Kind, (<-ch).Kind}
	if got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected [b c] after overflow, got %v", got)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event %q", ev.Kind)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(1)
	ch, unsub := b.Subscribe()
	unsub()
	if _, open := <-ch; open {
		t.Fatal("expected channel closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Kind: "x"})
}
