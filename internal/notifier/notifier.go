// Package notifier fans out change signals to live observers of a group.
//
// Rapid edits (someone ticking assignment boxes one after another) would
// otherwise trigger a refetch per keystroke, so broadcasts are debounced: each
// new change restarts a per-group delay timer, and only when the edits pause
// for the full window does a single broadcast go out. The signal is a hint to
// refetch authoritative state, never the state itself.
package notifier

import (
	"log/slog"
	"sync"
	"time"
)

// Event types delivered to observers.
const (
	EventRefreshGroup = "refresh_group"
	EventEntryUpdated = "entry_updated"
)

// DefaultWindow is the debounce delay used when none is configured.
const DefaultWindow = 2 * time.Second

// Event is the payload broadcast to observers of a group.
type Event struct {
	Type    string    `json:"type"`
	GroupID string    `json:"group_id"`
	At      time.Time `json:"at"`
}

// Observer is a live connection interested in one group's changes.
// Send must be safe for concurrent use; a non-nil error prunes the observer
// from the registry.
type Observer interface {
	Send(Event) error
}

type pending struct {
	timer *time.Timer
	event Event
}

// Notifier is the per-group debounced broadcaster. Construct one per server
// with New and inject it where mutations happen; it is not a singleton, so
// tests and multiple instances stay isolated.
type Notifier struct {
	window time.Duration

	mu        sync.Mutex
	observers map[string]map[Observer]struct{}
	pendings  map[string]*pending
	closed    bool
}

// New creates a Notifier with the given debounce window.
// A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Notifier {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Notifier{
		window:    window,
		observers: make(map[string]map[Observer]struct{}),
		pendings:  make(map[string]*pending),
	}
}

// Register adds an observer to a group's registry.
func (n *Notifier) Register(groupID string, obs Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	set, ok := n.observers[groupID]
	if !ok {
		set = make(map[Observer]struct{})
		n.observers[groupID] = set
	}
	set[obs] = struct{}{}
	slog.Debug("observer registered", "group_id", groupID, "observers", len(set))
}

// Unregister removes an observer. When a group's registry empties, any
// pending broadcast for it is cancelled: there is no point notifying nobody.
func (n *Notifier) Unregister(groupID string, obs Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(groupID, obs)
}

func (n *Notifier) removeLocked(groupID string, obs Observer) {
	set, ok := n.observers[groupID]
	if !ok {
		return
	}
	delete(set, obs)
	if len(set) > 0 {
		return
	}
	delete(n.observers, groupID)
	if p, ok := n.pendings[groupID]; ok {
		p.timer.Stop()
		delete(n.pendings, groupID)
		slog.Debug("pending broadcast cancelled, registry empty", "group_id", groupID)
	}
}

// Changed records a mutation to a group. With no observers it is a no-op.
// Otherwise it (re)starts the group's debounce timer carrying the latest
// event; timer cancellation and rescheduling is atomic under the registry
// lock, so events for the same group never race a stale timer.
func (n *Notifier) Changed(groupID string, ev Event) {
	ev.GroupID = groupID
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || len(n.observers[groupID]) == 0 {
		return
	}
	if p, ok := n.pendings[groupID]; ok {
		p.timer.Stop()
	}
	p := &pending{event: ev}
	p.timer = time.AfterFunc(n.window, func() { n.fire(groupID, p) })
	n.pendings[groupID] = p
	slog.Debug("broadcast scheduled", "group_id", groupID, "type", ev.Type, "window", n.window)
}

// fire delivers a debounced broadcast. A timer that lost the race with its
// own cancellation finds it is no longer the registered pending entry and
// returns without sending.
func (n *Notifier) fire(groupID string, p *pending) {
	n.mu.Lock()
	if n.pendings[groupID] != p {
		n.mu.Unlock()
		return
	}
	delete(n.pendings, groupID)

	// Snapshot under the lock; sends happen outside it so a slow or failing
	// observer never blocks connects and disconnects.
	targets := make([]Observer, 0, len(n.observers[groupID]))
	for obs := range n.observers[groupID] {
		targets = append(targets, obs)
	}
	n.mu.Unlock()

	var failed []Observer
	for _, obs := range targets {
		if err := obs.Send(p.event); err != nil {
			slog.Warn("observer send failed, pruning", "group_id", groupID, "error", err)
			failed = append(failed, obs)
		}
	}
	slog.Info("broadcast delivered",
		"group_id", groupID,
		"type", p.event.Type,
		"sent", len(targets)-len(failed),
		"pruned", len(failed),
	)

	if len(failed) > 0 {
		n.mu.Lock()
		for _, obs := range failed {
			n.removeLocked(groupID, obs)
		}
		n.mu.Unlock()
	}
}

// ObserverCount reports how many observers are registered for a group.
func (n *Notifier) ObserverCount(groupID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.observers[groupID])
}

// Close cancels all pending timers and rejects further events.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for groupID, p := range n.pendings {
		p.timer.Stop()
		delete(n.pendings, groupID)
	}
}
