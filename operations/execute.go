package operations

import (
	"time"
)

// ExecuteOperation executes an operation with the given input and dependencies and records a
// Report of the execution.
//
// The handler is invoked exactly once. A failed execution is still reported, and the handler's
// error is returned unchanged so callers can inspect it with errors.Is / errors.As.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle,
	operation *Operation[IN, OUT, DEP],
	deps DEP,
	input IN,
) (Report[IN, OUT], error) {
	start := time.Now()
	output, err := operation.execute(b, deps, input)

	report := NewReport(operation.Def(), input, output, err)
	report.Duration = time.Since(start)

	if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
		b.Logger.Errorw("Failed to record operation report", "id", operation.ID(), "error", rerr)
	}

	if err != nil {
		b.Logger.Debugw("Operation failed", "id", operation.ID(), "error", err)

		return report, err
	}

	return report, nil
}
