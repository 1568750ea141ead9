package actorloop

import (
	"sync"
	"sync/atomic"
)

// Slot states, packed two bits per slot into a single 64-bit word shared by
// every slot in an Inbox plus the receiver cursor. The encoding is a ring of
// EMPTY -> TAKEN -> FILLED -> READING -> EMPTY transitions, each one a single
// atomic fetch-or/xor/and against the whole word, masked to the two bits
// belonging to the slot in question:
//
//	EMPTY   (00) -- sender  OR  01 --> TAKEN
//	TAKEN   (01) -- sender  OR  11 --> FILLED
//	FILLED  (11) -- receiver XOR 01 --> READING
//	READING (10) -- receiver AND NOT 11 --> EMPTY
//
// The OR-based transitions are deliberately overlap-tolerant: a sender
// racing to claim a slot the receiver is simultaneously vacating observes
// whichever composite value results and simply retries on any status other
// than the one it assumed going in.
const (
	slotEmpty   uint64 = 0b00
	slotTaken   uint64 = 0b01
	slotFilled  uint64 = 0b11
	slotReading uint64 = 0b10
)

// Reference-count bitfield, packed into a second word alongside the status
// word. Bit 0 tracks the single Receiver, bit 1 the single Manager, and the
// remaining high bits are a plain count of live Sender handles.
const (
	refReceiverAlive uint64 = 1 << 0
	refManagerAlive  uint64 = 1 << 1
	refSenderShift          = 2
	refSenderOne     uint64 = 1 << refSenderShift
)

func fetchOr(addr *uint64, mask uint64) uint64 {
	for {
		old := atomic.LoadUint64(addr)
		if atomic.CompareAndSwapUint64(addr, old, old|mask) {
			return old
		}
	}
}

func fetchXor(addr *uint64, mask uint64) uint64 {
	for {
		old := atomic.LoadUint64(addr)
		if atomic.CompareAndSwapUint64(addr, old, old^mask) {
			return old
		}
	}
}

func fetchAnd(addr *uint64, mask uint64) uint64 {
	for {
		old := atomic.LoadUint64(addr)
		if atomic.CompareAndSwapUint64(addr, old, old&mask) {
			return old
		}
	}
}

// inboxCore is the shared state behind a Sender/Receiver/Manager triple. It
// is always referenced by pointer; capacity is fixed for the lifetime of
// the core and rounded up to a power of two on construction.
type inboxCore[T any] struct {
	cap     uint64
	capMask uint64
	// statusShift is how many bits of the combined word the slot statuses
	// occupy (2 * cap); the receiver cursor lives in the bits above it.
	statusShift uint64
	cursorStep  uint64

	word uint64 // slot statuses (low bits) + receiver cursor (high bits)
	refs uint64 // reference-count bitfield

	cells []T

	senderWaiters senderWaiterList

	recvMu          sync.Mutex
	recvWaker       *Waker
	recvWantsWakeup bool
}

// maxInboxCapacity is the largest power-of-two slot count whose status
// bits and receiver cursor both fit in the single 64-bit word: each slot
// takes 2 status bits, and the cursor occupies the bits immediately
// above them (statusShift = 2*cap), so 2*cap must leave at least one bit
// of headroom or the cursor's shift amount reaches the word's own width
// and Go's shift semantics zero it out silently instead of wrapping.
// 16 is the largest power of two clearing that bar with room to spare
// (2*16 = 32 status bits, leaving 32 for a cursor that only ever needs
// log2(cap) of them).
const maxInboxCapacity = 16

func newInboxCore[T any](capacity int) *inboxCore[T] {
	if capacity <= 0 {
		capacity = 8
	}
	n := nextPow2(capacity)
	if n > maxInboxCapacity {
		n = maxInboxCapacity
	}
	c := &inboxCore[T]{
		cap:         uint64(n),
		capMask:     uint64(n - 1),
		statusShift: uint64(2 * n),
		cells:       make([]T, n),
		refs:        refReceiverAlive | refManagerAlive | refSenderOne,
	}
	c.cursorStep = 1 << c.statusShift
	return c
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (c *inboxCore[T]) slotStatus(word uint64, i uint64) uint64 {
	return (word >> (2 * i)) & 0b11
}

func (c *inboxCore[T]) cursorOf(word uint64) uint64 {
	return (word >> c.statusShift) & c.capMask
}

func (c *inboxCore[T]) sendersAlive() bool {
	return atomic.LoadUint64(&c.refs)>>refSenderShift > 0
}

func (c *inboxCore[T]) receiverAlive() bool {
	return atomic.LoadUint64(&c.refs)&refReceiverAlive != 0
}

func (c *inboxCore[T]) managerAlive() bool {
	return atomic.LoadUint64(&c.refs)&refManagerAlive != 0
}

// trySend scans up to cap slots starting at the current receiver cursor,
// claims the first EMPTY one it finds (EMPTY->TAKEN->FILLED), and wakes the
// receiver if the cursor happens to already be parked on that slot.
func (c *inboxCore[T]) trySend(v T) error {
	if !c.receiverAlive() && !c.managerAlive() {
		return ChannelDisconnected[T]{Value: v}
	}
	w := atomic.LoadUint64(&c.word)
	start := c.cursorOf(w)
	for off := uint64(0); off < c.cap; off++ {
		i := (start + off) & c.capMask
		if c.slotStatus(w, i) != slotEmpty {
			continue
		}
		old := fetchOr(&c.word, slotTaken<<(2*i))
		if c.slotStatus(old, i) != slotEmpty {
			// lost the race for this slot; re-read and keep scanning.
			w = atomic.LoadUint64(&c.word)
			continue
		}
		c.cells[i] = v
		after := fetchOr(&c.word, (slotFilled^slotTaken)<<(2*i))
		if c.cursorOf(after) == i {
			c.wakeReceiver()
		}
		return nil
	}
	if !c.receiverAlive() && !c.managerAlive() {
		return ChannelDisconnected[T]{Value: v}
	}
	return ChannelFull[T]{Value: v}
}

// tryRecv advances the receiver cursor (a single atomic fetch-add that
// simultaneously yields a consistent snapshot of every slot status to scan
// from) and looks for the first FILLED slot starting at the position the
// cursor held before the advance. Connectivity
// is checked before scanning begins, matching the "observe disconnect
// before declaring empty" requirement: a sender that fills a slot and then
// drops can never be missed by a receiver that started checking first.
func (c *inboxCore[T]) tryRecv() (T, error) {
	var zero T
	sendersGoneBefore := !c.sendersAlive()
	prev := atomic.AddUint64(&c.word, c.cursorStep) - c.cursorStep
	start := c.cursorOf(prev)
	for off := uint64(0); off < c.cap; off++ {
		i := (start + off) & c.capMask
		if c.slotStatus(prev, i) != slotFilled {
			continue
		}
		old := fetchXor(&c.word, (slotFilled^slotReading)<<(2*i))
		if c.slotStatus(old, i) != slotFilled {
			continue
		}
		v := c.cells[i]
		c.cells[i] = zero
		fetchAnd(&c.word, ^(uint64(0b11) << (2 * i)))
		c.wakeOneSender()
		return v, nil
	}
	if sendersGoneBefore && !c.sendersAlive() {
		return zero, ChannelDisconnectedRecv
	}
	return zero, ChannelEmpty
}

func (c *inboxCore[T]) wakeReceiver() {
	c.recvMu.Lock()
	w := c.recvWaker
	wants := c.recvWantsWakeup
	c.recvWantsWakeup = false
	c.recvMu.Unlock()
	if wants && w != nil {
		w.Wake()
	}
}

func (c *inboxCore[T]) registerRecvWaker(w *Waker) {
	c.recvMu.Lock()
	c.recvWaker = w
	c.recvWantsWakeup = true
	c.recvMu.Unlock()
}

func (c *inboxCore[T]) wakeOneSender() {
	n := c.senderWaiters.next()
	if n != nil && n.waker != nil {
		n.waker.Wake()
	}
}

// Sender is a cloneable handle used to place values into an Inbox. Sends
// stay connected while either the Receiver or the Manager is alive; the
// number of live Senders does not affect them.
type Sender[T any] struct {
	core *inboxCore[T]
}

// TrySend attempts to place v into the inbox without blocking. It returns
// ChannelFull if every slot is occupied, or ChannelDisconnected if neither
// a Receiver nor a Manager remain.
func (s *Sender[T]) TrySend(v T) error {
	return s.core.trySend(v)
}

// PollSend attempts to send v, registering waker and returning Pending if
// the inbox is currently full. Pending callers must call PollSend again
// (with the same or a fresh value) once waker fires; there is no implicit
// retry. waker must be non-nil.
func (s *Sender[T]) PollSend(v T, waker *Waker) (PollResult, T, error) {
	if err := s.core.trySend(v); err == nil {
		return Complete, v, nil
	} else if cd, ok := err.(ChannelDisconnected[T]); ok {
		return Complete, cd.Value, err
	}
	node := &senderWaiter{waker: waker}
	s.core.senderWaiters.add(node)
	// Re-check after registering to close the wake-miss race: a slot may
	// have freed up between the first trySend and the list insertion.
	err := s.core.trySend(v)
	if err == nil {
		s.core.senderWaiters.removeLocked(node)
		return Complete, v, nil
	}
	if cd, ok := err.(ChannelDisconnected[T]); ok {
		s.core.senderWaiters.removeLocked(node)
		return Complete, cd.Value, err
	}
	return Pending, v, nil
}

// Clone returns a new Sender handle referencing the same inbox, incrementing
// the live sender count.
func (s *Sender[T]) Clone() *Sender[T] {
	atomic.AddUint64(&s.core.refs, refSenderOne)
	return &Sender[T]{core: s.core}
}

// Close releases this Sender handle. Once every Sender has closed, Receiver
// reads observe ChannelDisconnectedRecv after any buffered values have been
// taken, whether or not a Manager is still alive. Closing the last Sender
// wakes a parked receiver so it can observe the disconnect.
func (s *Sender[T]) Close() {
	if atomic.AddUint64(&s.core.refs, ^uint64(refSenderOne-1))>>refSenderShift == 0 {
		s.core.wakeReceiver()
	}
}

// Receiver is the single handle used to take values out of an Inbox.
type Receiver[T any] struct {
	core *inboxCore[T]
}

// TryRecv attempts to take a value without blocking.
func (r *Receiver[T]) TryRecv() (T, error) {
	return r.core.tryRecv()
}

// PollRecv attempts to take a value, registering waker and returning
// Pending if the inbox is currently empty but senders remain connected.
func (r *Receiver[T]) PollRecv(waker *Waker) (PollResult, T, error) {
	if v, err := r.core.tryRecv(); err == nil || err == ChannelDisconnectedRecv {
		return Complete, v, err
	}
	r.core.registerRecvWaker(waker)
	v, err := r.core.tryRecv()
	if err == nil || err == ChannelDisconnectedRecv {
		return Complete, v, err
	}
	return Pending, v, nil
}

// Close releases the Receiver handle. Subsequent TrySend/PollSend calls
// observe ChannelDisconnected once the Manager (if any) has also closed.
func (r *Receiver[T]) Close() {
	atomic.AddUint64(&r.core.refs, ^uint64(refReceiverAlive-1))
}

// Manager is an auxiliary handle that keeps an Inbox connected for senders
// even while no Receiver is attached, and can mint a replacement Receiver
// later (e.g. after an actor restart).
type Manager[T any] struct {
	core *inboxCore[T]
}

// NewReceiver mints a new Receiver for the channel. It fails with
// ErrReceiverAlreadyConnected if one is already live.
func (m *Manager[T]) NewReceiver() (*Receiver[T], error) {
	for {
		old := atomic.LoadUint64(&m.core.refs)
		if old&refReceiverAlive != 0 {
			return nil, ErrReceiverAlreadyConnected
		}
		if atomic.CompareAndSwapUint64(&m.core.refs, old, old|refReceiverAlive) {
			return &Receiver[T]{core: m.core}, nil
		}
	}
}

// Close releases the Manager handle.
func (m *Manager[T]) Close() {
	atomic.AddUint64(&m.core.refs, ^uint64(refManagerAlive-1))
}

// NewInbox constructs a bounded MPSC channel with the given capacity
// (rounded up to the next power of two, clamped to maxInboxCapacity; a
// capacity of zero or less means 8), returning the initial Sender, Receiver, and Manager
// handles.
func NewInbox[T any](capacity int) (*Sender[T], *Receiver[T], *Manager[T]) {
	core := newInboxCore[T](capacity)
	return &Sender[T]{core: core}, &Receiver[T]{core: core}, &Manager[T]{core: core}
}
