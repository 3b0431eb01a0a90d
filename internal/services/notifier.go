// Package services holds the operations behind the API: month views built
// from recurring templates, transaction edits, the bill-task board and the
// synchronizer that keeps it in step with recurring expenses.
package services

import (
	"context"
	"log/slog"

	"moneyboard/internal/amqp"
	"moneyboard/internal/log"
)

// ChangePublisher receives an event after every committed write.
// *amqp.Client implements it.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event amqp.ChangeEvent) error
}

// publishChange never fails the caller: the write is already committed and
// consumers re-read the store anyway.
func publishChange(ctx context.Context, p ChangePublisher, event amqp.ChangeEvent) {
	if p == nil {
		return
	}
	if err := p.PublishChange(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldOwner, event.OwnerID,
			log.FieldMonth, event.Month.String(),
			log.FieldRef, event.Ref,
			log.FieldError, err,
			"kind", event.Kind)
	}
}
