// internal/champion/loader.go
package champion

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Loader fetches the roster in the background, retrying failures with a
// doubling delay, and hands each successful roster to OnLoad.
type Loader struct {
	Source   Source
	Logger   *logrus.Logger
	OnLoad   func(*Roster)
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Run blocks until the first successful load or ctx is done.
func (l *Loader) Run(ctx context.Context) error {
	delay := l.MinDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := l.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}

	for {
		champs, err := l.Source.Fetch(ctx)
		if err == nil {
			roster := NewRoster(champs)
			l.Logger.WithField("champions", roster.Len()).Info("Champion roster loaded")
			if l.OnLoad != nil {
				l.OnLoad(roster)
			}
			return nil
		}

		l.Logger.WithError(err).Warnf("Unable to load champion data, retrying in %s", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
