package store

import "sync"

type event struct {
	err  error
	data []byte
}

// hub routes committed changes to document subscriptions.
type hub struct {
	subs   map[string]map[uint64]*Subscription
	mu     sync.Mutex
	nextID uint64
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[uint64]*Subscription)}
}

func (h *hub) subscribe(key string, fn func(event)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:  h,
		key:  key,
		id:   h.nextID,
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]*Subscription)
	}
	h.subs[key][sub.id] = sub

	go sub.run()
	return sub
}

func (h *hub) deliver(key string, ev event) {
	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs[key]))
	for _, sub := range h.subs[key] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.push(ev)
	}
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m := h.subs[sub.key]; m != nil {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(h.subs, sub.key)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*Subscription
	for _, m := range h.subs {
		for _, sub := range m {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

// count returns the number of live subscriptions. Used by tests.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}

// Subscription is a live watch on one document. Emissions are queued without
// bound and delivered one at a time on the subscription's own goroutine.
type Subscription struct {
	hub     *hub
	fn      func(event)
	wake    chan struct{}
	quit    chan struct{}
	key     string
	pending []event
	id      uint64
	mu      sync.Mutex
	once    sync.Once
	closed  bool
}

func (s *Subscription) push(ev event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() (event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.pending) == 0 {
		return event{}, false
	}
	ev := s.pending[0]
	s.pending[0] = event{}
	s.pending = s.pending[1:]
	return ev, true
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			s.fn(ev)
		}
	}
}

// Close stops the subscription. Once Close returns no further emission is
// started; one already running may still finish. Close is safe to call from
// inside any callback, including this subscription's own.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)

		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()

		close(s.quit)
	})
}
