// Package modelstore holds trained model state keyed by string, with
// atomic swap-on-retrain semantics: readers always observe either the
// fully-old or fully-new model for a key, never a partially trained one.
package modelstore

import (
	"sync"
	"sync/atomic"
)

// Store maps keys to trained models of type M. Reads are lock-free after the
// first publish for a key; training is serialized per key so concurrent
// retrains of the same key cannot interleave, while other keys train freely.
type Store[M any] struct {
	mu    sync.RWMutex
	slots map[string]*atomic.Pointer[M]

	training sync.Map // key -> *sync.Mutex
}

// New creates an empty store.
func New[M any]() *Store[M] {
	return &Store[M]{slots: make(map[string]*atomic.Pointer[M])}
}

// Get returns the current model for key, if one has been published.
func (s *Store[M]) Get(key string) (*M, bool) {
	s.mu.RLock()
	slot, ok := s.slots[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	m := slot.Load()
	return m, m != nil
}

// Publish installs a model for key by pointer swap. The previous model, if
// any, remains valid for readers that already loaded it.
func (s *Store[M]) Publish(key string, m *M) {
	s.slot(key).Store(m)
}

// TrainOnce returns the model for key, building and publishing it with build
// on first use. Concurrent callers for the same key block until the first
// build completes; a failed build leaves the slot empty so a later call can
// retry.
func (s *Store[M]) TrainOnce(key string, build func() (*M, error)) (*M, error) {
	if m, ok := s.Get(key); ok {
		return m, nil
	}

	lockAny, _ := s.training.LoadOrStore(key, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	if m, ok := s.Get(key); ok {
		return m, nil
	}
	m, err := build()
	if err != nil {
		return nil, err
	}
	s.Publish(key, m)
	return m, nil
}

// Retrain builds a replacement model for key and publishes it atomically.
// Unlike TrainOnce it always runs build, serialized per key.
func (s *Store[M]) Retrain(key string, build func() (*M, error)) (*M, error) {
	lockAny, _ := s.training.LoadOrStore(key, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	m, err := build()
	if err != nil {
		return nil, err
	}
	s.Publish(key, m)
	return m, nil
}

// Keys returns the keys that currently hold a published model.
func (s *Store[M]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.slots))
	for k, slot := range s.slots {
		if slot.Load() != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Store[M]) slot(key string) *atomic.Pointer[M] {
	s.mu.RLock()
	slot, ok := s.slots[key]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok = s.slots[key]; ok {
		return slot
	}
	slot = &atomic.Pointer[M]{}
	s.slots[key] = slot
	return slot
}
