package syncengine

import "sync"

// Connectivity is the boolean online/offline signal with change
// notifications. Real detectors (OS network monitors, heartbeat probes)
// adapt to this interface; tests flip a Signal by hand.
type Connectivity interface {
	// Online reports the current connectivity state.
	Online() bool

	// Subscribe registers a listener invoked on every state change. The
	// returned function unsubscribes; calling it more than once is safe.
	Subscribe(listener func(online bool)) (unsubscribe func())
}

// Signal is a manual Connectivity implementation driven by Set.
type Signal struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(online bool)
}

// NewSignal returns a signal in the given initial state.
func NewSignal(online bool) *Signal {
	return &Signal{
		online:    online,
		listeners: make(map[int]func(online bool)),
	}
}

var _ Connectivity = (*Signal)(nil)

func (s *Signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set transitions the signal. Listeners fire only on actual changes, after
// the lock is released so they may call back into the signal.
func (s *Signal) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(online)
	}
}

func (s *Signal) Subscribe(listener func(online bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
