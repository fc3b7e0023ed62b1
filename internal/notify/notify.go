// Package notify tells displays that what they should show has changed.
package notify

import (
	"context"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// Reasons carried in refresh messages.
const (
	ReasonSchedule = "schedule"
	ReasonOverride = "override"
	ReasonRotation = "rotation"
)

// Notifier pushes a refresh hint for a board. Delivery is best effort.
type Notifier interface {
	BoardChanged(ctx context.Context, board model.Board, reason string)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) BoardChanged(context.Context, model.Board, string) {}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, board model.Board, reason string)

func (f Func) BoardChanged(ctx context.Context, board model.Board, reason string) { f(ctx, board, reason) }

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) BoardChanged(ctx context.Context, board model.Board, reason string) {
	for _, n := range m {
		n.BoardChanged(ctx, board, reason)
	}
}
