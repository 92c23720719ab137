// Package actor provides the minimal mailbox primitive the actors in this
// runtime (supervisor, console, reaper) build on: a bounded,
// single-consumer queue with non-blocking, backpressure-reporting sends.
// Go has no actor runtime of its own; this is the hand-rolled equivalent
// the design notes call for (one goroutine per actor, one channel per
// mailbox, FIFO delivery within a mailbox, no ordering across mailboxes).
package actor

import (
	"sync"

	"github.com/chorusdev/chorus/internal/logger"
)

// DefaultCapacity is the mailbox size used when callers don't need to tune
// it. It is generous enough that a burst of reload/output messages never
// backs up under normal operation; callers expecting bursty producers
// (the watcher, in particular) should size their own mailbox explicitly.
const DefaultCapacity = 64

// Mailbox is the receive side of an actor's queue. It is owned exclusively
// by the goroutine that calls Run.
type Mailbox[M any] struct {
	name   string
	ch     chan M
	closed chan struct{}
	once   sync.Once
	log    logger.Logger
}

// NewMailbox creates a mailbox with the given name (used in log lines when
// a send is dropped) and capacity.
func NewMailbox[M any](name string, capacity int, log logger.Logger) *Mailbox[M] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox[M]{name: name, ch: make(chan M, capacity), closed: make(chan struct{}), log: log}
}

// Address returns a send-only, cloneable handle to this mailbox. Addresses
// are the only thing actors hand to one another — never the mailbox itself
// — so no actor can ever read another actor's queue.
func (m *Mailbox[M]) Address() Address[M] {
	return Address[M]{name: m.name, ch: m.ch, closed: m.closed, log: m.log}
}

// Run processes messages from the mailbox, one at a time and to completion,
// until the mailbox is closed. handler must not block on anything that in
// turn depends on this actor processing another message, or the actor
// deadlocks against itself. Once closed, any messages still buffered are
// drained and handled before Run returns, so a PoisonPill's own handling
// (which triggers Close) is never the last message lost.
func (m *Mailbox[M]) Run(handler func(M)) {
	for {
		select {
		case msg := <-m.ch:
			handler(msg)
		case <-m.closed:
			for {
				select {
				case msg := <-m.ch:
					handler(msg)
				default:
					return
				}
			}
		}
	}
}

// Close stops the mailbox. It never closes the underlying message channel
// itself — a concurrent Send on a closed channel would panic — it only
// signals closed, which Send and Run both select against. Any Send racing
// with (or arriving after) Close is dropped and reported, the same as a
// full mailbox, rather than crashing the sender. Safe to call more than
// once.
func (m *Mailbox[M]) Close() {
	m.once.Do(func() { close(m.closed) })
}

// Address is an opaque, send-capable reference to another actor's mailbox.
// It carries no ownership of the actor's internal state — exactly the
// "message-only capability" the design notes require to avoid ownership
// cycles between supervisors that must address each other.
type Address[M any] struct {
	name   string
	ch     chan<- M
	closed <-chan struct{}
	log    logger.Logger
}

// Send enqueues msg without blocking. If the mailbox is full, or has been
// closed, the message is dropped and reported through the configured
// logger — this is the documented backpressure policy, not a bug: a slow
// or gone consumer must never stall or panic its sender.
func (a Address[M]) Send(msg M) bool {
	if a.ch == nil {
		return false
	}
	select {
	case <-a.closed:
		a.reportDropped("closed")
		return false
	default:
	}
	select {
	case a.ch <- msg:
		return true
	case <-a.closed:
		a.reportDropped("closed")
		return false
	default:
		a.reportDropped("full")
		return false
	}
}

func (a Address[M]) reportDropped(reason string) {
	if a.log != nil {
		a.log.Warnf("mailbox %q %s, dropping message", a.name, reason)
	}
}

// Valid reports whether this address points at a live mailbox.
func (a Address[M]) Valid() bool {
	return a.ch != nil
}
