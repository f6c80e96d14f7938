package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/protobase/launchpad/facts"
	"github.com/protobase/launchpad/progress"
)

// writeJSON prints v as indented JSON to the command's output, or to path when it is set.
func writeJSON(cmd *cobra.Command, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	b = append(b, '\n')

	if path == "" {
		_, err = cmd.OutOrStdout().Write(b)

		return err
	}

	if err = os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	cmd.PrintErrf("Wrote %s\n", path)

	return nil
}

// printEvents returns a progress subscriber printing every event to the command's error stream,
// leaving stdout to the JSON result.
func printEvents(cmd *cobra.Command) func(progress.Event) {
	return func(e progress.Event) {
		cmd.PrintErrf("[%s] %-7s %s\n", e.Timestamp.Format("15:04:05"), strings.ToUpper(e.Level.String()), e.Message)
	}
}

// printOutcome subscribes summary lines for the session outcome to bus.
func printOutcome(cmd *cobra.Command, bus *facts.Bus) error {
	if err := bus.OnSucceeded(func(f facts.DeploymentSucceeded) {
		cmd.PrintErrf("✅ %s deployed at %s%s\n", f.ContractName, f.ContractAddress.Hex(), simulatedSuffix(f.Simulated))
	}); err != nil {
		return err
	}

	return bus.OnFailed(func(f facts.DeploymentFailed) {
		verb := "failed"
		if f.Abandoned {
			verb = "abandoned"
		}
		cmd.PrintErrf("❌ Deployment %s during %s: %s%s\n", verb, f.Stage, f.Reason, simulatedSuffix(f.Simulated))
	})
}

func simulatedSuffix(simulated bool) string {
	if simulated {
		return " (simulated)"
	}

	return ""
}

// constructorArgs passes --arg values on as strings; the ABI coerces them to the constructor's
// parameter types.
func constructorArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		args[i] = s
	}

	return args
}
