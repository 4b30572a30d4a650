package service

import "sync"

// inflightSet tracks provider event ids being processed by this process.
type inflightSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{held: make(map[string]struct{})}
}

func (s *inflightSet) tryLock(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[id]; ok {
		return false
	}
	s.held[id] = struct{}{}
	return true
}

func (s *inflightSet) unlock(id string) {
	s.mu.Lock()
	delete(s.held, id)
	s.mu.Unlock()
}
