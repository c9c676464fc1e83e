package pose

import (
	"sync"
	"time"

	iface "PoseSilhouette/interface"
)

// Store holds the most recently published PoseSet. The poller is the only
// writer; readers take snapshots.
type Store struct {
	mu        sync.RWMutex
	poses     iface.PoseSet
	seq       uint64
	updatedAt time.Time
	subs      map[chan struct{}]struct{}
}

func NewStore() *Store {
	return &Store{subs: make(map[chan struct{}]struct{})}
}

// Publish replaces the held PoseSet unless seq is older than the current one.
// It reports whether the value was taken.
func (s *Store) Publish(seq uint64, ps iface.PoseSet, at time.Time) bool {
	s.mu.Lock()
	if seq < s.seq {
		s.mu.Unlock()
		return false
	}
	s.poses = ps
	s.seq = seq
	s.updatedAt = at
	subs := make([]chan struct{}, 0, len(s.subs))
	for ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return true
}

func (s *Store) Snapshot() (iface.PoseSet, uint64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poses, s.seq, s.updatedAt
}

// Overlay renders the held PoseSet.
func (s *Store) Overlay() Overlay {
	ps, _, at := s.Snapshot()
	ov := Render(ps)
	ov.UpdatedAt = at
	return ov
}

// Subscribe returns a channel that receives a signal after every accepted
// Publish. Signals coalesce; the reader should take a fresh Snapshot.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}
