package broadcast

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	// must not panic or block
	b.Publish("inv-1", StepEvent{Stage: StageAnalyzing, Message: "working"})
	require.Equal(t, 0, b.SubscriberCount("inv-1"))
}

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	b := New()
	sub := b.Subscribe("inv-1")
	defer b.Unsubscribe("inv-1", sub)

	stages := []Stage{StageFetchingContext, StageSearchingWeb, StageAnalyzing, StageCompleted}
	for i, st := range stages {
		b.Publish("inv-1", StepEvent{Stage: st, Message: fmt.Sprintf("step %d", i)})
	}

	for i, want := range stages {
		select {
		case ev := <-sub.Events():
			require.Equal(t, want, ev.Stage)
			require.Equal(t, "inv-1", ev.InvestigationID)
			require.False(t, ev.At.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestEventsDoNotCrossInvestigations(t *testing.T) {
	b := New()
	a := b.Subscribe("inv-a")
	defer b.Unsubscribe("inv-a", a)
	other := b.Subscribe("inv-b")
	defer b.Unsubscribe("inv-b", other)

	b.Publish("inv-a", StepEvent{Stage: StageCompleted, Message: "done"})

	select {
	case ev := <-a.Events():
		require.Equal(t, "inv-a", ev.InvestigationID)
	case <-time.After(time.Second):
		t.Fatal("subscriber for inv-a got nothing")
	}
	select {
	case ev := <-other.Events():
		t.Fatalf("subscriber for inv-b got stray event: %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannelAndIsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe("inv-1")
	b.Unsubscribe("inv-1", sub)
	b.Unsubscribe("inv-1", sub)

	_, ok := <-sub.Events()
	require.False(t, ok)
	require.Equal(t, 0, b.SubscriberCount("inv-1"))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	slow := b.Subscribe("inv-1")
	defer b.Unsubscribe("inv-1", slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Publish("inv-1", StepEvent{Stage: StageAnalyzing, Message: "burst"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("inv-%d", n%2)
			for j := 0; j < 50; j++ {
				sub := b.Subscribe(id)
				b.Publish(id, StepEvent{Stage: StageAnalyzing, Message: "tick"})
				b.Unsubscribe(id, sub)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, b.SubscriberCount("inv-0"))
	require.Equal(t, 0, b.SubscriberCount("inv-1"))
}
