package notify

import (
	"context"
	"errors"
	"fmt"
)

// Dispatcher delivers one payload. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, p Payload) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, p Payload) error

func (f DispatcherFunc) Dispatch(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

// Channel is a named delivery route. The name is recorded on the outbox row
// once the channel accepts a notification.
type Channel struct {
	Name       string
	Dispatcher Dispatcher
}

// Multi sends the payload to every channel and joins their errors.
// A failure in one does not stop the others.
type Multi []Channel

func (m Multi) Dispatch(ctx context.Context, p Payload) error {
	_, err := m.DispatchSkipping(ctx, p, nil)
	return err
}

// DispatchSkipping sends p to every channel for which skip returns false and
// returns the names of the channels that accepted it.
func (m Multi) DispatchSkipping(ctx context.Context, p Payload, skip func(name string) bool) ([]string, error) {
	var (
		accepted []string
		errs     []error
	)
	for _, ch := range m {
		if skip != nil && skip(ch.Name) {
			continue
		}
		if err := ch.Dispatcher.Dispatch(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		accepted = append(accepted, ch.Name)
	}
	return accepted, errors.Join(errs...)
}
