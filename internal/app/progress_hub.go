package app

import (
	"sync"

	"personality-quiz-service/internal/domain"
)

// progressHub fans progress snapshots out to per-user watchers.
type progressHub struct {
	mu       sync.Mutex
	watchers map[string]map[chan domain.Progress]struct{}
}

func newProgressHub() *progressHub {
	return &progressHub{watchers: make(map[string]map[chan domain.Progress]struct{})}
}

func (h *progressHub) subscribe(userID string) (chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 8)

	h.mu.Lock()
	if h.watchers[userID] == nil {
		h.watchers[userID] = make(map[chan domain.Progress]struct{})
	}
	h.watchers[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.watchers[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.watchers, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *progressHub) publish(userID string, progress domain.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[userID] {
		select {
		case ch <- progress:
		default:
			// drop the stale snapshot so a slow watcher never blocks scoring
			select {
			case <-ch:
			default:
			}
			ch <- progress
		}
	}
}
