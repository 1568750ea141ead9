package actorloop

import "sync"

// senderWaiter is a node in the inbox's pending-sender waker list. Its
// lifetime is bound to the Sender.PollSend call that owns it: the node is
// linked before the call returns Pending, and unlinked either by a
// receiver's next() pop, or by PollSend itself (via removeLocked) when its
// re-check after linking succeeds or finds the inbox disconnected.
//
// The teacher's ChunkedIngress settled on a mutex-guarded linked structure
// over a fully lock-free one after benchmarking showed "mutex outperforms
// lock-free under contention" for exactly this kind of multi-producer
// queue (see loop.go's ChunkedIngress doc comment); the pending-sender
// list applies the same reasoning here rather than reimplementing a
// CAS-based Treiber list.
type senderWaiter struct {
	waker      *Waker
	prev, next *senderWaiter
	linked     bool
}

// senderWaiterList is an unbounded FIFO of parked sender wakers.
type senderWaiterList struct {
	mu         sync.Mutex
	head, tail *senderWaiter
}

// add appends n to the tail of the list.
func (l *senderWaiterList) add(n *senderWaiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n.linked {
		return
	}
	n.prev, n.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	n.linked = true
}

// next pops and returns the oldest waiter, or nil if the list is empty.
func (l *senderWaiterList) next() *senderWaiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.head
	if n == nil {
		return nil
	}
	l.remove(n)
	return n
}

// remove unlinks n from the list. Safe to call even if n is not currently
// linked (e.g. it was already popped by next, or never added).
func (l *senderWaiterList) remove(n *senderWaiter) {
	if !n.linked {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	n.linked = false
}

// removeLocked is remove but acquires the list mutex first; used by
// PollSend when its re-check after linking completes without waiting, so
// the unlink is serialized with a receiver's next() pop.
func (l *senderWaiterList) removeLocked(n *senderWaiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remove(n)
}
