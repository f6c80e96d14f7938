package compiler

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	pragmaRe  = regexp.MustCompile(`(?m)^\s*pragma\s+solidity\s+([^;]+);`)
	commentRe = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
)

// checkPragma returns an error diagnostic for every `pragma solidity` directive the pinned
// compiler does not satisfy. Constraints that cannot be parsed are left for the compiler to
// judge. Directives inside comments are ignored.
func checkPragma(source string) Diagnostics {
	var ds Diagnostics
	for _, m := range pragmaRe.FindAllStringSubmatch(stripComments(source), -1) {
		raw := strings.TrimSpace(m[1])

		c, err := semver.NewConstraint(raw)
		if err != nil {
			continue
		}

		if !c.Check(PinnedVersion) {
			ds = append(ds, preflightError(
				"source requires solidity %s but the pinned compiler is %s", raw, PinnedVersion,
			))
		}
	}

	return ds
}

// stripComments blanks out line and block comments, keeping the line structure so that
// directives following a comment still start a line.
func stripComments(source string) string {
	return commentRe.ReplaceAllStringFunc(source, func(c string) string {
		return strings.Repeat("\n", strings.Count(c, "\n"))
	})
}
