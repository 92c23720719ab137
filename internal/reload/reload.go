// Package reload defines the message vocabulary exchanged between task
// supervisors, the grim reaper, and their callers: the upstream/downstream
// reload coordination protocol (§4.5, §9 "cyclic addressing") plus the
// control messages (GetStatus, WaitStatus, PoisonPill, PermaDeathInvite)
// every supervisor answers.
//
// Messages are plain structs rather than a closed sum type: a supervisor's
// mailbox is an actor.Mailbox[any], and its handler type-switches on the
// concrete message. This keeps the vocabulary importable by supervisor,
// console, and reaper alike without an import cycle through a shared
// marker interface.
package reload

import "github.com/chorusdev/chorus/internal/actor"

// Variant distinguishes the four reasons a supervisor restarts its child
// (§4.5 "Reload(variant)").
type Variant int

const (
	// Start is the initial reload a root supervisor receives at startup.
	Start Variant = iota
	// Manual is a user-requested reload (the console's 'r' key).
	Manual
	// Watch is a reload triggered by a matching filesystem change.
	Watch
	// Op is a downstream's notification that an upstream has finished
	// its own restart cycle.
	Op
)

// Reload asks a supervisor to ensure its current child is stopped and,
// depending on Variant, either spawn immediately or wait on more
// upstreams.
type Reload struct {
	Variant Variant
	// Files holds the changed paths for Variant == Watch.
	Files []string
	// Upstream holds the upstream task name for Variant == Op.
	Upstream string
}

// NewStart builds a Reload(Start) message.
func NewStart() Reload { return Reload{Variant: Start} }

// NewManual builds a Reload(Manual) message.
func NewManual() Reload { return Reload{Variant: Manual} }

// NewWatch builds a Reload(Watch) message for the given changed paths.
func NewWatch(files []string) Reload { return Reload{Variant: Watch, Files: files} }

// NewOp builds a Reload(Op) message announcing that upstream has finished
// restarting.
func NewOp(upstream string) Reload { return Reload{Variant: Op, Upstream: upstream} }

// WillReload announces that an upstream task is about to restart. The
// receiving supervisor increments its pending-upstream counter for
// Upstream before propagating the announcement to its own downstream.
type WillReload struct {
	Upstream string
}

// StatusKind classifies how a child process reached a terminal state.
type StatusKind int

const (
	// Exited means the child ran to completion and reported a normal
	// exit code.
	Exited StatusKind = iota
	// Signaled means the child was terminated by a signal (including
	// the supervisor's own kill).
	Signaled
	// Undetermined means a terminal state was reached but the exit
	// status could not be determined.
	Undetermined
)

// Status is a child process's terminal outcome.
type Status struct {
	Kind StatusKind
	Code int
}

// Success reports whether Status represents a zero exit.
func (s Status) Success() bool {
	return s.Kind == Exited && s.Code == 0
}

// ExitCode maps Status to the process exit code the grim reaper reports,
// per §4.7 / §9: exited(n) -> n, signaled(n) -> n, undetermined -> 1.
func (s Status) ExitCode() int {
	if s.Kind == Undetermined {
		return 1
	}
	return s.Code
}

// GetStatus polls a supervisor without blocking. Reply receives nil if the
// child has not yet reached a terminal state.
type GetStatus struct {
	Reply chan<- *Status
}

// WaitStatus suspends the caller until the supervisor's child reaches a
// terminal state, then delivers it on Reply.
type WaitStatus struct {
	Reply chan<- Status
}

// PoisonPill asks an actor to terminate cleanly.
type PoisonPill struct{}

// PermaDeathInvite records the reaper's interest in this supervisor's
// terminal status. If the supervisor is already terminal it RSVPs
// immediately; otherwise it holds the invitation for the next terminal
// transition.
type PermaDeathInvite struct {
	Reaper actor.Address[any]
}

// InviteAccepted is a supervisor's RSVP to a PermaDeathInvite, reporting
// its task name and terminal status.
type InviteAccepted struct {
	Name   string
	Status Status
}
