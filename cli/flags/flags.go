// Package flags defines the flags shared by several launchpad commands, so that they are named
// and behave the same everywhere. Flags used by a single command live with that command.
package flags

import (
	"time"

	"github.com/spf13/cobra"
)

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustStringArray returns the string array value, ignoring the error.
func MustStringArray(s []string, _ error) []string { return s }

// MustBool returns the bool value, ignoring the error.
func MustBool(b bool, _ error) bool { return b }

// MustDuration returns the duration value, ignoring the error.
func MustDuration(d time.Duration, _ error) time.Duration { return d }

// Network adds the required --network/-n flag, a chain selector or chain name.
func Network(cmd *cobra.Command) {
	cmd.Flags().StringP("network", "n", "", "Target network, as a chain selector or chain name (required)")
	_ = cmd.MarkFlagRequired("network")
}

// Contract adds the --contract/-c flag naming the contract to deploy when the source declares
// several.
func Contract(cmd *cobra.Command) {
	cmd.Flags().StringP("contract", "c", "", "Contract to select when the source declares several")
}

// Args adds the repeatable --arg/-a flag holding constructor arguments in declaration order.
func Args(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("arg", "a", nil, "Constructor argument, repeated in declaration order")
}

// Output adds the --out/-o flag for writing the command's JSON result to a file.
func Output(cmd *cobra.Command) {
	cmd.Flags().StringP("out", "o", "", "Write the JSON result to this file instead of stdout")
}
