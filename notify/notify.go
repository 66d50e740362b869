package notify

import (
	"context"
	"errors"
)

var (
	_ Notifier = Func(nil)
	_ Notifier = Nop{}
	_ Notifier = Multi(nil)
)

// Func adapts a plain store-URL callback to Notifier.
type Func func(storeURL string)

func (f Func) NotifyUpdate(_ context.Context, n Notice) error {
	if f != nil {
		f(n.StoreURL)
	}
	return nil
}

// Nop discards every notice.
type Nop struct{}

func (Nop) NotifyUpdate(context.Context, Notice) error { return nil }

// Multi delivers to every notifier, continuing past failures.
type Multi []Notifier

func (m Multi) NotifyUpdate(ctx context.Context, n Notice) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifyUpdate(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
