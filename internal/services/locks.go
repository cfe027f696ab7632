package services

import "sync"

// keyedMutex serializes work per key. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*refLock{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// subscribers holds per-key callbacks. Callbacks run on the goroutine that
// calls notify.
type subscribers[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]func(T)
}

func (s *subscribers[T]) add(key string, fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = map[string]map[uint64]func(T){}
	}
	if s.subs[key] == nil {
		s.subs[key] = map[uint64]func(T){}
	}
	s.next++
	id := s.next
	s.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[key], id)
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
		})
	}
}

func (s *subscribers[T]) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[key]) > 0
}

// notify delivers v to every callback for key. When clone is set each
// callback gets its own copy.
func (s *subscribers[T]) notify(key string, v T, clone func(T) T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		if clone != nil {
			fn(clone(v))
			continue
		}
		fn(v)
	}
}
