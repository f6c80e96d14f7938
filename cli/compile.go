package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/protobase/launchpad/cli/flags"
	"github.com/protobase/launchpad/cli/text"
	"github.com/protobase/launchpad/compiler"
)

var (
	compileShort = "Compile a Solidity source"

	compileLong = text.LongDesc(`
		Compiles a single Solidity source file with the pinned compiler version and optimizer
		settings, and prints the artifact (bytecode and ABI) of the selected contract as JSON.

		Warnings are printed to stderr. When the compiler reports any error, every diagnostic
		is printed and no artifact is produced.
	`)

	compileExample = text.Examples(`
		# Compile the only contract of a source
		launchpad compile SimpleStorage.sol

		# Select one of several contracts and write the artifact to a file
		launchpad compile Tokens.sol --contract Token --out Token.json
	`)
)

type compileFlags struct {
	source   string
	contract string
	out      string
}

// newCompileCmd creates the "compile" command.
func newCompileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compile <source.sol>",
		Short:   compileShort,
		Long:    compileLong,
		Example: compileExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := compileFlags{
				source:   args[0],
				contract: flags.MustString(cmd.Flags().GetString("contract")),
				out:      flags.MustString(cmd.Flags().GetString("out")),
			}

			return runCompile(cmd, a, f)
		},
	}

	flags.Contract(cmd)
	flags.Output(cmd)

	return cmd
}

func runCompile(cmd *cobra.Command, a *app, f compileFlags) (err error) {
	ctx := cmd.Context()

	source, err := os.ReadFile(f.source)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	c, closeFn, err := a.newCompiler(ctx)
	if err != nil {
		return err
	}
	defer closeAll(&err, closeFn)

	artifact, diags, err := c.CompileContract(ctx, string(source), f.contract)

	var derr *compiler.DiagnosticsError
	if errors.As(err, &derr) {
		for _, d := range derr.Diagnostics {
			cmd.PrintErrln(d.String())
		}

		return fmt.Errorf("compilation of %s failed: %s", f.source, derr.Diagnostics.Summary())
	}
	if err != nil {
		return err
	}

	for _, w := range diags.Warnings() {
		cmd.PrintErrln(w.String())
	}

	return writeJSON(cmd, f.out, artifact)
}
