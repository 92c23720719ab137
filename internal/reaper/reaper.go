// Package reaper implements the grim reaper (§4.7): it collects terminal
// exit statuses from every invited supervisor and, once all have
// reported, decides the process's exit code.
package reaper

import (
	"github.com/chorusdev/chorus/internal/actor"
	"github.com/chorusdev/chorus/internal/logger"
	"github.com/chorusdev/chorus/internal/reload"
)

// Supervisor is the subset of a supervisor's address the reaper needs:
// the ability to receive a PermaDeathInvite naming the reaper's own
// address.
type Supervisor interface {
	Address() actor.Address[any]
}

// Reaper is the grim reaper actor (§4.7, §8 S6). Construct with New,
// invite every supervisor with Invite, then read Done for the aggregated
// exit code once every invitee has RSVP'd.
type Reaper struct {
	mailbox *actor.Mailbox[any]
	self    actor.Address[any]
	log     logger.Logger

	pending  map[string]bool
	order    []string
	results  map[string]reload.Status
	done     chan int
	finished bool
}

// New builds a Reaper.
func New(log logger.Logger) *Reaper {
	r := &Reaper{
		pending: map[string]bool{},
		results: map[string]reload.Status{},
		done:    make(chan int, 1),
		log:     log,
	}
	r.mailbox = actor.NewMailbox[any]("reaper", actor.DefaultCapacity, log)
	r.self = r.mailbox.Address()
	return r
}

// Address returns this reaper's send-only handle.
func (r *Reaper) Address() actor.Address[any] { return r.self }

// Done resolves once every invited supervisor has reached a terminal
// state, carrying the process exit code per §4.7's policy: 0 if every
// status indicates success, otherwise the exit code of the first
// non-success status in collection order.
func (r *Reaper) Done() <-chan int { return r.done }

// Invite sends a PermaDeathInvite to every named supervisor and tracks it
// as a live invite, in the given collection order (the order results are
// compared in for the "first non-success" rule, per §4.7).
func (r *Reaper) Invite(supervisors map[string]actor.Address[any], order []string) {
	for _, name := range order {
		addr, ok := supervisors[name]
		if !ok {
			continue
		}
		r.pending[name] = true
		r.order = append(r.order, name)
		addr.Send(reload.PermaDeathInvite{Reaper: r.self})
	}
	if len(r.pending) == 0 {
		r.finish()
	}
}

// Run processes InviteAccepted messages until every live invite has
// RSVP'd, then delivers the aggregated exit code on Done and stops. If
// Invite already found zero live invites (an empty engine), Run returns
// immediately without blocking on a mailbox nothing will ever write to.
func (r *Reaper) Run() {
	if r.finished {
		return
	}
	r.mailbox.Run(func(msg any) {
		accepted, ok := msg.(reload.InviteAccepted)
		if !ok {
			r.log.Warnf("reaper: unrecognized message %T", msg)
			return
		}
		r.results[accepted.Name] = accepted.Status
		delete(r.pending, accepted.Name)
		if len(r.pending) == 0 {
			r.finish()
			r.mailbox.Close()
		}
	})
}

func (r *Reaper) finish() {
	r.finished = true
	code := 0
	for _, name := range r.order {
		status, ok := r.results[name]
		if !ok || status.Success() {
			continue
		}
		code = status.ExitCode()
		break
	}
	r.done <- code
}
