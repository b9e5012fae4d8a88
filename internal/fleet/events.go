package fleet

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventDeviceJoined    EventKind = "device_joined"
	EventDeviceInfo      EventKind = "device_info"
	EventRemoteLog       EventKind = "remote_log"
	EventDeviceForgotten EventKind = "device_forgotten"
	EventConfigApplied   EventKind = "config_applied"
)

// Event is one registry change, shaped for JSON streaming.
type Event struct {
	Kind   EventKind `json:"kind"`
	At     time.Time `json:"at"`
	Device Device    `json:"device"`
	Log    *LogEntry `json:"log,omitempty"`
	Phash  uint32    `json:"config_phash,omitempty"`
}

type eventHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[uint64]chan Event)}
}

func (h *eventHub) subscribe(size int) (<-chan Event, func()) {
	if size <= 0 {
		size = 16
	}
	ch := make(chan Event, size)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Announce publishes a controller-side event, such as a config push, to
// subscribers.
func (r *Registry) Announce(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.events.publish(ev)
}
