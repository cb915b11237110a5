package main

import (
	"fmt"
	"io"
	"time"

	"github.com/OCAP2/handoff/internal/storage/memory"
	"github.com/OCAP2/handoff/pkg/core"
)

// inspectExports prints a summary of each history export and checks that
// the recorded consumption order is the production order.
func inspectExports(w io.Writer, paths []string) error {
	for _, path := range paths {
		export, err := memory.ReadExport(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		fmt.Fprintf(w, "%s\n", path)
		fmt.Fprintf(w, "  exchange: %s\n", export.Exchange)
		fmt.Fprintf(w, "  started:  %s\n", export.Started.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  duration: %s\n", export.Ended.Sub(export.Started).Round(time.Millisecond))
		fmt.Fprintf(w, "  produced: %d\n", export.Produced)
		fmt.Fprintf(w, "  consumed: %d\n", export.Consumed)

		if mismatch := firstOutOfOrder(export.Events); mismatch != nil {
			fmt.Fprintf(w, "  order:    MISMATCH at seq %d (value %d)\n", mismatch.Seq, mismatch.Value)
		} else {
			fmt.Fprintf(w, "  order:    ok\n")
		}
	}
	return nil
}

// firstOutOfOrder returns the first consumed event whose value differs
// from the produced value at the same position, or nil.
func firstOutOfOrder(events []core.Event) *core.Event {
	var produced []int
	taken := 0
	for i := range events {
		switch events[i].Kind {
		case core.KindProduced:
			produced = append(produced, events[i].Value)
		case core.KindConsumed:
			// a dropped produce event leaves nothing to compare against
			if taken < len(produced) && produced[taken] != events[i].Value {
				return &events[i]
			}
			taken++
		}
	}
	return nil
}
