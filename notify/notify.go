/*
Package notify implements the notification dispatcher collaborator.

PURPOSE:
  The lifecycle service emits a comp.Notification after every committed
  Submit/Approve/Reject. Dispatch is fire-and-forget: the service has
  already committed the transition before the dispatcher runs, and a
  dispatch failure is logged, never propagated.

  LogDispatcher is the default implementation - it writes structured
  events for an out-of-band mailer/webhook relay to pick up. Recorder is
  the test double.
*/
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/warp/comp-engine/comp"
)

// =============================================================================
// LOG DISPATCHER
// =============================================================================

// LogDispatcher emits notifications as structured log events.
type LogDispatcher struct {
	Log zerolog.Logger
}

func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{Log: log.With().Str("component", "notify").Logger()}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n comp.Notification) {
	d.Log.Info().
		Str("event", string(n.Event)).
		Str("employee_id", string(n.EmployeeID)).
		Str("structure_id", string(n.StructureID)).
		Str("actor", n.Actor).
		Msg(n.Message)
}

// =============================================================================
// RECORDER - Test double
// =============================================================================

// Recorder captures dispatched notifications for assertions.
type Recorder struct {
	mu     sync.Mutex
	events []comp.Notification
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Dispatch(_ context.Context, n comp.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

// Events returns a snapshot of everything dispatched so far.
func (r *Recorder) Events() []comp.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]comp.Notification, len(r.events))
	copy(out, r.events)
	return out
}
