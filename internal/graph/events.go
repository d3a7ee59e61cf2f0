package graph

import (
	"context"
	"time"
)

// Actions reported in events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes a change to a graph.
type Event struct {
	Action    string    `json:"action"`
	Owner     int32     `json:"owner"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is told about every successful change.
type Notifier interface {
	GraphChanged(ctx context.Context, ev Event) error
}

type nopNotifier struct{}

func (nopNotifier) GraphChanged(context.Context, Event) error { return nil }

// publish reports a change. Delivery failures are logged, never returned:
// the change itself has already committed.
func (s *Service) publish(ctx context.Context, action string, owner int32, name string) {
	ev := Event{
		Action:    action,
		Owner:     owner,
		Name:      name,
		Timestamp: s.now().UTC(),
	}
	if err := s.notifier.GraphChanged(ctx, ev); err != nil {
		s.logger.Warn("graph event not delivered", "action", action, "name", name, "error", err)
	}
}
