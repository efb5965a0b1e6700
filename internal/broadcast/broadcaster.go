package broadcast

import (
	"sync"
	"time"
)

// Stage tags a step event with the pipeline phase that produced it.
type Stage string

const (
	StageFetchingContext Stage = "fetching_context"
	StageSearchingWeb    Stage = "searching_web"
	StageAnalyzing       Stage = "analyzing"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

// StepEvent is an ephemeral progress notification for one investigation.
// Events are delivered to currently connected subscribers only; there is no
// replay buffer.
type StepEvent struct {
	InvestigationID string    `json:"investigation_id"`
	Stage           Stage     `json:"stage"`
	Message         string    `json:"message"`
	Payload         any       `json:"payload,omitempty"`
	At              time.Time `json:"at"`
}

// subscriberBuffer bounds how far a slow observer may lag before events are
// dropped for it. Dropping is per subscriber and never affects others.
const subscriberBuffer = 16

// Subscriber is one observer's handle on an investigation's event stream.
type Subscriber struct {
	ch     chan StepEvent
	closed bool
}

// Events returns the channel step events arrive on. The channel is closed on
// unsubscribe.
func (s *Subscriber) Events() <-chan StepEvent {
	return s.ch
}

// Broadcaster fans out step events to any number of live observers, keyed by
// investigation id. All methods are safe for concurrent use.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a new observer for the given investigation id.
// Subscribing to an id with no prior events is valid and simply waits.
func (b *Broadcaster) Subscribe(id string) *Subscriber {
	sub := &Subscriber{ch: make(chan StepEvent, subscriberBuffer)}
	b.mu.Lock()
	set, ok := b.subs[id]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[id] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes an observer and closes its channel. It is idempotent
// and safe to call while a publish for the same id is in flight.
func (b *Broadcaster) Unsubscribe(id string, sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	if set, ok := b.subs[id]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, id)
		}
	}
	sub.closed = true
	close(sub.ch)
}

// Publish delivers the event to every subscriber currently registered for the
// id. Publishing with zero subscribers is a no-op; a subscriber whose buffer
// is full has the event dropped rather than blocking delivery to others.
func (b *Broadcaster) Publish(id string, ev StepEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	ev.InvestigationID = id

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[id] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of observers registered for the id.
func (b *Broadcaster) SubscriberCount(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[id])
}
