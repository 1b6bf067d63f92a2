package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/enums"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// runDLQ serves `outbox-publisher dlq list [reason]` and
// `outbox-publisher dlq replay <eventId>`.
func runDLQ(ctx context.Context, out io.Writer, db txRunner, dlq *outbox.DLQRepository, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: dlq list [max_attempts|non_retryable] | dlq replay <eventId>")
	}
	switch args[0] {
	case "list":
		filter := outbox.DLQFilter{}
		if len(args) > 1 {
			filter.Reason = enums.OutboxDLQErrorReason(args[1])
			if !filter.Reason.IsValid() {
				return fmt.Errorf("unknown reason %q", args[1])
			}
		}
		rows, err := dlq.List(ctx, filter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT\tTYPE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
		for _, row := range rows {
			msg := ""
			if row.ErrorMessage != nil {
				msg = *row.ErrorMessage
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", row.EventID, row.EventType, row.ErrorReason,
				row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339), msg)
		}
		return w.Flush()
	case "replay":
		if len(args) < 2 {
			return fmt.Errorf("replay needs an event id")
		}
		eventID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid event id: %w", err)
		}
		if err := db.WithTx(ctx, func(tx *gorm.DB) error { return dlq.ReplayTx(tx, eventID) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "requeued %s\n", eventID)
		return nil
	}
	return fmt.Errorf("unknown dlq command %q", args[0])
}
