package sse

import (
	"encoding/json"
	"fmt"
	"sync"
)

// AllCodes subscribes to every bounce regardless of code.
const AllCodes = ""

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a listener for bounces with the given code, or AllCodes.
func (h *Hub) Subscribe(code string) (chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if _, ok := h.subs[code]; !ok {
		h.subs[code] = make(map[chan []byte]struct{})
	}
	h.subs[code][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.subs[code]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(h.subs, code)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Broadcast delivers payload to AllCodes listeners and to listeners of code.
// Slow subscribers drop events rather than block the sender.
func (h *Hub) Broadcast(code string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := []string{AllCodes}
	if code != AllCodes {
		targets = append(targets, code)
	}
	for _, key := range targets {
		for ch := range h.subs[key] {
			select {
			case ch <- payload:
			default:
			}
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, subscribers := range h.subs {
		total += len(subscribers)
	}
	return total
}

// Event formats one server-sent event with a JSON data line.
func Event(name string, payload any) []byte {
	data, _ := json.Marshal(payload)
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", name, data))
}
