package authstate

import "sync"

// Store exposes the current State and change notifications. Single writer
// (the controller), any number of readers. It applies no business rules.
type Store struct {
	state    State
	watchers map[int]chan State
	nextID   int
	lock     sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		state:    Loading(),
		watchers: make(map[int]chan State),
	}
}

// Snapshot returns the current state by value.
func (s *Store) Snapshot() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Set replaces the state and notifies watchers. Only the session controller
// may call this.
func (s *Store) Set(state State) {
	s.lock.Lock()
	s.state = state
	channels := make([]chan State, 0, len(s.watchers))
	for _, ch := range s.watchers {
		channels = append(channels, ch)
	}
	s.lock.Unlock()

	for _, ch := range channels {
		// Drop-oldest so a slow watcher sees the latest state rather than
		// blocking the writer.
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}

// Watch returns a channel receiving every state change and a cancel
// function releasing it.
func (s *Store) Watch() (<-chan State, func()) {
	s.lock.Lock()
	defer s.lock.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, 4)
	s.watchers[id] = ch

	cancel := func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.watchers, id)
	}
	return ch, cancel
}
