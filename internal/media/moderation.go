package media

import (
	"context"
	"time"
)

// Verdict is the outcome of a moderation check.
type Verdict struct {
	Approved bool
	Reason   string
}

// Moderator decides whether a normalized image may be stored.
type Moderator interface {
	Moderate(ctx context.Context, img *Normalized) (Verdict, error)
}

// StubModerator waits briefly and approves everything.
type StubModerator struct {
	Delay time.Duration
}

// Moderate implements Moderator.
func (s StubModerator) Moderate(ctx context.Context, img *Normalized) (Verdict, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		case <-timer.C:
		}
	}
	return Verdict{Approved: true}, nil
}

// ModeratorFunc adapts a function to the Moderator interface.
type ModeratorFunc func(ctx context.Context, img *Normalized) (Verdict, error)

// Moderate implements Moderator.
func (f ModeratorFunc) Moderate(ctx context.Context, img *Normalized) (Verdict, error) {
	return f(ctx, img)
}
