package sim

import (
	"container/list"
	"context"
	"log"
	"sync"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &HookPos{Name: "Buffer Pop"}

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// A Buffer is a fifo queue whose level can be observed.
type Buffer interface {
	Named
	Hookable

	Capacity() int
	Size() int
}

// A BoundedBuffer is a fifo queue with a fixed capacity. Putting into a full
// buffer suspends the caller until an element is removed. Getting from an
// empty buffer suspends the caller until an element arrives. Suspended
// callers are released in the order they arrived. Nothing is ever dropped.
type BoundedBuffer[T any] struct {
	HookableBase

	name     string
	capacity int

	lock     sync.Mutex
	elements []T

	// putters is only non-empty when the buffer is full, getters only when it
	// is empty.
	putters *list.List
	getters *list.List
}

type waiter[T any] struct {
	item T
	done chan struct{}
}

// NewBoundedBuffer creates a buffer that holds at most capacity elements.
func NewBoundedBuffer[T any](name string, capacity int) *BoundedBuffer[T] {
	NameMustBeValid(name)

	if capacity <= 0 {
		log.Panicf("buffer %s must have a positive capacity", name)
	}

	return &BoundedBuffer[T]{
		name:     name,
		capacity: capacity,
		putters:  list.New(),
		getters:  list.New(),
	}
}

// Name returns the name of the buffer.
func (b *BoundedBuffer[T]) Name() string {
	return b.name
}

// Capacity returns the maximum number of elements the buffer can hold.
func (b *BoundedBuffer[T]) Capacity() int {
	return b.capacity
}

// Size returns the number of elements currently in the buffer.
func (b *BoundedBuffer[T]) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.elements)
}

// NumBlockedPutters returns how many callers are suspended in Put.
func (b *BoundedBuffer[T]) NumBlockedPutters() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.putters.Len()
}

// NumBlockedGetters returns how many callers are suspended in Get.
func (b *BoundedBuffer[T]) NumBlockedGetters() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.getters.Len()
}

// Put appends e to the buffer, waiting while the buffer is full. It only fails
// if ctx is done before space becomes available, in which case e is not
// inserted.
func (b *BoundedBuffer[T]) Put(ctx context.Context, e T) error {
	b.lock.Lock()

	if front := b.getters.Front(); front != nil {
		b.getters.Remove(front)
		w := front.Value.(*waiter[T])
		w.item = e
		close(w.done)
		b.lock.Unlock()

		b.invoke(HookPosBufPush, e)
		b.invoke(HookPosBufPop, e)

		return nil
	}

	if len(b.elements) < b.capacity {
		b.elements = append(b.elements, e)
		b.lock.Unlock()

		b.invoke(HookPosBufPush, e)

		return nil
	}

	w := &waiter[T]{item: e, done: make(chan struct{})}
	elem := b.putters.PushBack(w)
	b.lock.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		b.lock.Lock()
		defer b.lock.Unlock()

		select {
		case <-w.done:
			return nil
		default:
		}

		b.putters.Remove(elem)

		return ctx.Err()
	}
}

// Get removes and returns the oldest element, waiting while the buffer is
// empty. It only fails if ctx is done before an element arrives.
func (b *BoundedBuffer[T]) Get(ctx context.Context) (T, error) {
	var zero T

	b.lock.Lock()

	if len(b.elements) > 0 {
		e := b.elements[0]
		b.elements[0] = zero
		b.elements = b.elements[1:]

		admitted, ok := b.admitPutter()
		b.lock.Unlock()

		b.invoke(HookPosBufPop, e)
		if ok {
			b.invoke(HookPosBufPush, admitted)
		}

		return e, nil
	}

	w := &waiter[T]{done: make(chan struct{})}
	elem := b.getters.PushBack(w)
	b.lock.Unlock()

	select {
	case <-w.done:
		return w.item, nil
	case <-ctx.Done():
		b.lock.Lock()
		defer b.lock.Unlock()

		select {
		case <-w.done:
			return w.item, nil
		default:
		}

		b.getters.Remove(elem)

		return zero, ctx.Err()
	}
}

// admitPutter moves the element of the longest waiting putter into the
// buffer. Must be called with the lock held.
func (b *BoundedBuffer[T]) admitPutter() (T, bool) {
	var zero T

	front := b.putters.Front()
	if front == nil {
		return zero, false
	}

	b.putters.Remove(front)
	w := front.Value.(*waiter[T])
	b.elements = append(b.elements, w.item)
	close(w.done)

	return w.item, true
}

func (b *BoundedBuffer[T]) invoke(pos *HookPos, e T) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   e,
	})
}
