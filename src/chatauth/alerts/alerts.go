package alerts

import (
	"context"
	"errors"
	"time"
)

// Event describes one failed provisioning step that left chat state behind
// the ledger.
type Event struct {
	PubKey    string
	Realm     string
	Step      string
	Error     string
	RequestID string
	Time      time.Time
}

// Sink receives provisioning failure events.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

type NopSink struct{}

func (NopSink) Notify(context.Context, Event) error { return nil }

// Fanout delivers each event to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
