package realtime

import "sync"

// Subscription is a standing interest in one topic. The callback fires once
// synchronously with the current snapshot at subscribe time, then once per
// published event, in publish order. Ordering holds only within a single
// subscription; nothing is promised across two subscriptions.
type Subscription struct {
	topic  string
	events chan []byte
	stop   chan struct{}
}

// CancelFunc tears a subscription down; further events are dropped.
type CancelFunc func()

// Subscribe registers cb on topic. snapshot is the query's current result
// set, handed to cb before Subscribe returns. Callers must invoke the
// returned CancelFunc when no longer interested.
func (h *Hub) Subscribe(topic string, snapshot []byte, cb func([]byte)) CancelFunc {
	sub := &Subscription{
		topic:  topic,
		events: make(chan []byte, 64),
		stop:   make(chan struct{}),
	}

	h.subsMu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]bool)
	}
	h.subs[topic][sub] = true
	h.subsMu.Unlock()

	cb(snapshot)

	// Dedicated pump per subscription keeps delivery ordered without
	// holding the hub lock during callbacks.
	go func() {
		for {
			select {
			case data := <-sub.events:
				cb(data)
			case <-sub.stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.subsMu.Lock()
			if set := h.subs[topic]; set != nil {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, topic)
				}
			}
			h.subsMu.Unlock()
			close(sub.stop)
		})
	}
}

func (h *Hub) notifySubs(topic string, data []byte) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	for sub := range h.subs[topic] {
		select {
		case sub.events <- data:
		default:
			// Slow consumer; drop rather than stall the publisher.
		}
	}
}
