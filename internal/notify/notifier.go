package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Notifier delivers a record to one sink.
type Notifier interface {
	Notify(ctx context.Context, rec Record) error
}

// Log writes records to the global zap logger. It never fails.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(_ context.Context, rec Record) error {
	fields := []zap.Field{
		zap.String("record_id", rec.ID),
		zap.String("kind", string(rec.Kind)),
		zap.String("session", rec.SessionID),
		zap.String("outcome", rec.Outcome),
	}
	if rec.Priced {
		fields = append(fields,
			zap.Int("price", rec.Price),
			zap.String("domain", rec.DomainLabel),
			zap.String("service", rec.ServiceLabel),
		)
	}
	zap.L().Info(rec.Body(), fields...)
	return nil
}

// Multi fans a record out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, rec Record) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
