// Package events is a small per-instance publish/subscribe bus.
package events

import (
	"errors"
	"fmt"
	"sync"
)

type Handler func(payload any)

// Subscription identifies one registered handler.
type Subscription struct {
	name string
	id   uint64
}

type entry struct {
	id uint64
	fn Handler
}

type Bus struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[string][]entry
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]entry)}
}

func (b *Bus) Subscribe(name string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.handlers[name] = append(b.handlers[name], entry{id: b.next, fn: fn})
	return Subscription{name: name, id: b.next}
}

// Unsubscribe removes the handler; unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.name]
	for i, e := range list {
		if e.id == sub.id {
			b.handlers[sub.name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish calls every handler registered for name, in registration order,
// on the calling goroutine. A panicking handler does not stop the others;
// the recovered panics are returned joined.
func (b *Bus) Publish(name string, payload any) error {
	b.mu.RLock()
	list := make([]entry, len(b.handlers[name]))
	copy(list, b.handlers[name])
	b.mu.RUnlock()

	var errs []error
	for _, e := range list {
		if err := call(e.fn, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func call(fn Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn(payload)
	return nil
}

// On subscribes a handler typed to the payload P. Payloads of any other
// type are ignored by that handler.
func On[P any](b *Bus, name string, fn func(P)) Subscription {
	return b.Subscribe(name, func(payload any) {
		if p, ok := payload.(P); ok {
			fn(p)
		}
	})
}
