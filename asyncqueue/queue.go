// Copyright 2026 The BakeBot Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package asyncqueue provides an unbounded FIFO queue that suspends
// consumers until a value is available. It is the only channel through
// which the agent's streaming tasks exchange work items.
package asyncqueue

import (
	"sync"
	"time"
)

type Queue[T any] struct {
	cond *sync.Cond
	// items[head:] holds the queued values; head advances on reads and the
	// backing array is recycled once fully consumed.
	items []T
	head  int
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		cond: sync.NewCond(&sync.Mutex{}),
	}
}

// Put appends a value and wakes any waiting consumer.
func (q *Queue[T]) Put(v T) {
	q.cond.L.Lock()
	q.items = append(q.items, v)
	q.cond.L.Unlock()
	q.cond.Broadcast()
}

// Get removes and returns the oldest value, blocking until one exists.
func (q *Queue[T]) Get() T {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	for q.head == len(q.items) {
		q.cond.Wait()
	}
	return q.pop()
}

// GetTimeout behaves like Get but gives up after the given duration,
// returning the zero value and false.
func (q *Queue[T]) GetTimeout(timeout time.Duration) (T, bool) {
	expired := false
	timer := time.AfterFunc(timeout, func() {
		q.cond.L.Lock()
		expired = true
		q.cond.L.Unlock()
		q.cond.Broadcast()
	})
	defer timer.Stop()

	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	for q.head == len(q.items) && !expired {
		q.cond.Wait()
	}

	if q.head == len(q.items) {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// GetNoWait removes and returns the oldest value without blocking.
// It returns the zero value and false if the queue is empty.
func (q *Queue[T]) GetNoWait() (T, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	if q.head == len(q.items) {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

func (q *Queue[T]) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return len(q.items) - q.head
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue[T]) pop() T {
	v := q.items[q.head]
	var zero T
	q.items[q.head] = zero // helps GC
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return v
}
