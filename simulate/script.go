package simulate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"text/template"

	"github.com/pelletier/go-toml/v2"

	"github.com/protobase/launchpad/deployer"
	"github.com/protobase/launchpad/progress"
)

// Step is one scripted progress event.
//
// Message is a text/template evaluated against the session's Identifiers. A Stage, when set,
// moves the session to that state before the message is emitted; intermediate states are walked
// in order.
type Step struct {
	Message string         `toml:"message"`
	Level   progress.Level `toml:"level"`
	Stage   deployer.State `toml:"stage,omitempty"`
}

// Script is an ordered list of steps.
type Script []Step

type scriptFile struct {
	Steps []Step `toml:"steps"`
}

// DefaultScript returns the built-in seven step sequence.
func DefaultScript() Script {
	return Script{
		{Message: "Contract artifacts generated successfully.", Level: progress.LevelSuccess, Stage: deployer.StateCompiling},
		{Message: "Simulating deployment on {{.Network}}...", Level: progress.LevelInfo, Stage: deployer.StateSubmitting},
		{Message: "Deployment successful. Transaction: {{.ShortTxHash}}", Level: progress.LevelSuccess, Stage: deployer.StateConfirming},
		{Message: "Indexing contract events at {{.ShortAddress}} from block {{.BlockNumber}}...", Level: progress.LevelInfo},
		{Message: "Wiring UI components to live contract hooks...", Level: progress.LevelInfo},
		{Message: "Verifying source code on block explorer...", Level: progress.LevelInfo, Stage: deployer.StateVerifying},
		{Message: "Deployment sequence completed.", Level: progress.LevelSuccess},
	}
}

// LoadScript reads a TOML script of the form
//
//	[[steps]]
//	message = "Simulating deployment on {{.Network}}..."
//	level = "info"
//	stage = "SUBMITTING"
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation script %s: %w", path, err)
	}

	var f scriptFile
	if err = toml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulation script %s: %w", path, err)
	}

	script := Script(f.Steps)
	if err = script.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation script %s: %w", path, err)
	}

	return script, nil
}

// Validate checks that the script has at least one step, that every step has a level and a
// well formed message, and that stages only move forward through the pipeline.
func (sc Script) Validate() error {
	if len(sc) == 0 {
		return errors.New("script has no steps")
	}

	var errs []error
	last := deployer.StateIdle
	for i, step := range sc {
		if _, err := progress.ParseLevel(string(step.Level)); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
		if _, err := step.render(Identifiers{}); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}

		if step.Stage == deployer.StateIdle {
			continue
		}
		if step.Stage < deployer.StateCompiling || step.Stage > deployer.StateVerifying {
			errs = append(errs, fmt.Errorf("step %d: stage %s is not a pipeline stage", i+1, step.Stage))

			continue
		}
		if step.Stage < last {
			errs = append(errs, fmt.Errorf("step %d: stage %s comes after %s", i+1, step.Stage, last))

			continue
		}
		last = step.Stage
	}

	return errors.Join(errs...)
}

func (s Step) render(ids Identifiers) (string, error) {
	tmpl, err := template.New("step").Option("missingkey=error").Parse(s.Message)
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ids); err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}

	return buf.String(), nil
}
