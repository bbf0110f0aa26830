package game

import (
	"sync"

	"github.com/wfunc/partyserver/models"
)

// Recorder is an Emitter that keeps every event, for tests and for rooms
// that buffer events until the command completes.
type Recorder struct {
	mu     sync.Mutex
	Events []Delivery
}

// Delivery is an event plus its target; Target is empty for broadcasts.
type Delivery struct {
	Target string
	Event  models.Event
}

func (r *Recorder) Broadcast(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Delivery{Event: evt})
}

func (r *Recorder) SendTo(playerID string, evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Delivery{Target: playerID, Event: evt})
}

// Drain returns and clears the recorded deliveries.
func (r *Recorder) Drain() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.Events
	r.Events = nil
	return out
}

// Types lists recorded event types in order.
func (r *Recorder) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.Events))
	for i, d := range r.Events {
		out[i] = d.Event.Type
	}
	return out
}

// Last returns the most recent event of type t.
func (r *Recorder) Last(t models.EventType) (models.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Events) - 1; i >= 0; i-- {
		if r.Events[i].Event.Type == t {
			return r.Events[i].Event, true
		}
	}
	return models.Event{}, false
}
