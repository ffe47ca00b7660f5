// Package policy implements txed's policy engine: pre-execution flag
// normalization, per-file write gating, and post-run violation checks
// against the aggregate Report.
package policy

import (
	"fmt"

	"github.com/jopamo/txed/internal/model"
)

// EnforcePreExecution applies pipeline-wide normalization before any item
// is processed: validate_only forces dry_run.
func EnforcePreExecution(p *model.Pipeline) {
	if p.ValidateOnly {
		p.DryRun = true
	}
}

// Enforcer evaluates write and commit policy against one pipeline config.
type Enforcer struct {
	pipeline *model.Pipeline
}

// New returns an Enforcer bound to pipeline.
func New(pipeline *model.Pipeline) *Enforcer {
	return &Enforcer{pipeline: pipeline}
}

// ShouldStage reports whether modified content should be staged for a
// deferred commit (transaction=All) rather than written directly.
func (e *Enforcer) ShouldStage() bool {
	if e.pipeline.ValidateOnly {
		return false
	}
	return e.pipeline.Transaction == model.TransactionAll
}

// CanWrite reports whether a modified item may be written at all, given
// dry_run/no_write. validate_only is not checked here; it blocks writes
// through the dry_run that EnforcePreExecution sets.
func (e *Enforcer) CanWrite(modified bool) bool {
	if !modified {
		return false
	}
	if e.pipeline.DryRun {
		return false
	}
	if e.pipeline.NoWrite {
		return false
	}
	return true
}

// EnforcePostRun checks the three mutually-exclusive policies against the
// finished Report and records the first violation found, checking
// require_match, then expect, then fail_on_change in that order.
func (e *Enforcer) EnforcePostRun(report *model.Report) {
	p := e.pipeline
	switch {
	case p.RequireMatch && report.Replacements == 0:
		report.PolicyViolation = "No matches found (--require-match)"
	case p.Expect != nil && report.Replacements != *p.Expect:
		report.PolicyViolation = fmt.Sprintf(
			"Expected %d replacements, found %d (--expect)", *p.Expect, report.Replacements)
	case p.FailOnChange && report.Modified > 0:
		report.PolicyViolation = fmt.Sprintf(
			"Changes detected in %d files (--fail-on-change)", report.Modified)
	}
}

// ShouldCommit reports whether the transaction manager should commit its
// staged writes: never under validate_only or dry_run, and only when the
// run would otherwise exit success.
func (e *Enforcer) ShouldCommit(report *model.Report) bool {
	if e.pipeline.ValidateOnly {
		return false
	}
	if e.pipeline.DryRun {
		return false
	}
	return report.ExitCode() == model.ExitSuccess
}
