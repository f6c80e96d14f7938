package compiler

import (
	"fmt"
	"strings"
)

// Severity classifies a compiler diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a single message reported while compiling a source.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	// Type is the compiler's error class, e.g. "ParserError" or "TypeError". Checks performed
	// before the compiler runs use "PreflightError".
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	// Formatted is the human readable message including the source excerpt, when available.
	Formatted string `json:"formatted,omitempty"`
}

// String returns "<Type>: <Message>".
func (d Diagnostic) String() string {
	if d.Type == "" {
		return d.Message
	}

	return d.Type + ": " + d.Message
}

// Diagnostics is the ordered list of diagnostics of one compilation.
type Diagnostics []Diagnostic

// HasErrors reports whether at least one diagnostic has severity error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Errors returns the diagnostics with severity error.
func (ds Diagnostics) Errors() Diagnostics {
	return ds.filter(SeverityError)
}

// Warnings returns the diagnostics with severity warning.
func (ds Diagnostics) Warnings() Diagnostics {
	return ds.filter(SeverityWarning)
}

func (ds Diagnostics) filter(s Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == s {
			out = append(out, d)
		}
	}

	return out
}

// Summary joins the messages of the error diagnostics, or of all diagnostics when there are no
// errors.
func (ds Diagnostics) Summary() string {
	selected := ds.Errors()
	if len(selected) == 0 {
		selected = ds
	}

	msgs := make([]string, 0, len(selected))
	for _, d := range selected {
		msgs = append(msgs, d.String())
	}

	return strings.Join(msgs, "; ")
}

// DiagnosticsError is returned when a compilation produced at least one error diagnostic. No
// artifact is ever returned alongside it.
type DiagnosticsError struct {
	Diagnostics Diagnostics
}

// Error implements the error interface.
func (e *DiagnosticsError) Error() string {
	return fmt.Sprintf("compilation failed with %d error(s): %s",
		len(e.Diagnostics.Errors()), e.Diagnostics.Summary())
}

func preflightError(format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Type:     "PreflightError",
		Message:  fmt.Sprintf(format, args...),
	}
}
