/*
Package operations runs the individual stages of a deployment as versioned, audited operations.

Each Operation performs at most one side effect (compile a source, send a transaction, poll
for a receipt). ExecuteOperation runs the handler exactly once and records a Report of the
input, output, error and timing into the Bundle's Reporter. Operations are never retried:
resubmitting a deployment transaction can create a second contract.

# Basic Usage

	op := operations.NewOperation(
		"compile", semver.MustParse("1.0.0"), "Compile Solidity source",
		func(b operations.Bundle, c *compiler.Compiler, src string) (*compiler.Artifact, error) {
			art, _, err := c.Compile(b.GetContext(), src)
			return art, err
		},
	)

	reporter := operations.NewMemoryReporter()
	bundle := operations.NewBundle(func() context.Context { return ctx }, lggr, reporter)
	report, err := operations.ExecuteOperation(bundle, op, comp, source)
*/
package operations
