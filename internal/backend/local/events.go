// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"sync"

	"github.com/alrawaj/rawaj-web/internal/backend"
)

type listener func(backend.Event, *backend.Session)

// broadcaster fans auth events out to subscribers in registration order.
type broadcaster struct {
	mu        sync.Mutex
	nextID    int
	order     []int
	listeners map[int]listener
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[int]listener)}
}

func (b *broadcaster) subscribe(fn listener) backend.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	return &subscription{b: b, id: id}
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *broadcaster) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[int]listener)
	b.order = nil
}

// emit delivers the event synchronously. Listeners run without the lock
// held so they may subscribe or unsubscribe.
func (b *broadcaster) emit(event backend.Event, s *backend.Session) {
	b.mu.Lock()
	fns := make([]listener, 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		var copied *backend.Session
		if s != nil {
			c := *s
			copied = &c
		}
		fn(event, copied)
	}
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

type subscription struct {
	b    *broadcaster
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.b.unsubscribe(s.id) })
}
