package server

import (
	"sync"

	"github.com/zeu5/royale-rl/types"
)

// Event is pushed to every feed subscriber after a reset or a step.
type Event struct {
	Kind    string             `json:"kind"`
	Episode int                `json:"episode"`
	Step    *types.Step        `json:"step,omitempty"`
	Reset   *types.Observation `json:"reset,omitempty"`
}

// Hub fans events out to the websocket subscribers. Slow subscribers
// lose events instead of blocking the control loop.
type Hub struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int]chan Event),
	}
}

func (h *Hub) Register() (int, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 64)
	h.subscribers[id] = ch
	return id, ch
}

func (h *Hub) Unregister(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Observer publishes the steps of a training run on the hub.
func (h *Hub) Observer() types.StepObserver {
	return func(episode int, step types.Step) {
		s := step
		h.Broadcast(Event{Kind: "step", Episode: episode, Step: &s})
	}
}
