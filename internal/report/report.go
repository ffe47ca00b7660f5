// Package report renders a finished model.Report in one of txed's output
// formats: human diff, summary, errors-only, a JSON event stream, an
// agent-friendly tagged text format, and a replay-oriented CSV log.
package report

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jopamo/txed/internal/model"
)

// Format selects the rendering used by Write.
type Format int

const (
	FormatHuman Format = iota
	FormatSummary
	FormatErrorsOnly
	FormatJSON
	FormatAgent
	// FormatCSV is a replay-oriented log format: one row per file carrying
	// enough to reconstruct or revert the write later (internal/replay).
	FormatCSV
)

// Policies mirrors the JSON event envelope's run_start.policies sub-record.
type Policies struct {
	RequireMatch bool `json:"require_match"`
	Expect       *int `json:"expect,omitempty"`
	FailOnChange bool `json:"fail_on_change"`
}

// RunContext carries the fields the JSON run_start event needs beyond the
// Report itself.
type RunContext struct {
	SchemaVersion   string
	ToolVersion     string
	Mode            string // "cli" | "apply"
	InputMode       string
	TransactionMode string
	Policies        Policies
}

type runStartEvent struct {
	Type            string   `json:"type"`
	SchemaVersion   string   `json:"schema_version"`
	ToolVersion     string   `json:"tool_version"`
	Mode            string   `json:"mode"`
	InputMode       string   `json:"input_mode"`
	TransactionMode string   `json:"transaction_mode"`
	DryRun          bool     `json:"dry_run"`
	ValidateOnly    bool     `json:"validate_only"`
	NoWrite         bool     `json:"no_write"`
	Policies        Policies `json:"policies"`
}

type fileEvent struct {
	Type             string `json:"type"`
	Path             string `json:"path"`
	Modified         bool   `json:"modified,omitempty"`
	Replacements     int    `json:"replacements,omitempty"`
	Diff             string `json:"diff,omitempty"`
	GeneratedContent string `json:"generated_content,omitempty"`
	BackupPath       string `json:"backup_path,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Message          string `json:"message,omitempty"`
}

type runEndEvent struct {
	Type              string `json:"type"`
	TotalFiles        int    `json:"total_files"`
	TotalModified     int    `json:"total_modified"`
	TotalReplacements int    `json:"total_replacements"`
	HasErrors         bool   `json:"has_errors"`
	PolicyViolation   string `json:"policy_violation,omitempty"`
	Committed         bool   `json:"committed"`
	DurationMS        int64  `json:"duration_ms"`
	ExitCode          int    `json:"exit_code"`
}

// Write renders report to w according to format. noWrite is threaded
// through separately from the Report since it is a run-config flag, not a
// per-run outcome.
func Write(w io.Writer, report *model.Report, format Format, ctx RunContext, noWrite bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report, ctx, noWrite)
	case FormatCSV:
		return writeCSV(w, report)
	case FormatAgent:
		return writeAgent(w, report)
	case FormatErrorsOnly:
		return writeErrorsOnly(w, report)
	case FormatSummary:
		return writeHuman(w, report, false)
	default:
		return writeHuman(w, report, true)
	}
}

func writeHuman(w io.Writer, report *model.Report, withDiff bool) error {
	if report.PolicyViolation != "" {
		fmt.Fprintf(w, "Policy Error: %s\n", report.PolicyViolation)
	}
	if report.ValidateOnly {
		fmt.Fprintln(w, "VALIDATION RUN - No files were written.")
	} else if report.DryRun {
		fmt.Fprintln(w, "DRY RUN - No files were written.")
	}
	fmt.Fprintf(w, "Processed %d files, modified %d, %d replacements.\n",
		report.Total, report.Modified, report.Replacements)

	for _, f := range report.Files {
		switch {
		case f.Error != nil:
			fmt.Fprintf(w, "  %s: ERROR - %s\n", f.Path, f.Error.Message)
		case f.Skipped != "":
			fmt.Fprintf(w, "  %s: skipped (%s)\n", f.Path, f.Skipped)
		case f.Modified:
			fmt.Fprintf(w, "  %s: modified (%d replacements)\n", f.Path, f.Replacements)
			if withDiff && f.Diff != "" {
				fmt.Fprintln(w, f.Diff)
			}
		default:
			fmt.Fprintf(w, "  %s: no changes\n", f.Path)
		}
	}
	return nil
}

func writeErrorsOnly(w io.Writer, report *model.Report) error {
	if report.PolicyViolation != "" {
		fmt.Fprintf(w, "Policy Error: %s\n", report.PolicyViolation)
	}
	for _, f := range report.Files {
		if f.Error != nil {
			fmt.Fprintf(w, "  %s: ERROR - %s\n", f.Path, f.Error.Message)
		}
	}
	return nil
}

func writeAgent(w io.Writer, report *model.Report) error {
	for _, f := range report.Files {
		fmt.Fprintf(w, "<file path=\"%s\">\n", f.Path)
		switch {
		case f.Error != nil:
			fmt.Fprintf(w, "ERROR: %s\n", f.Error.Message)
		case f.Skipped != "":
			fmt.Fprintf(w, "SKIPPED: %s\n", f.Skipped)
		case f.Diff != "":
			fmt.Fprintln(w, f.Diff)
		case f.Modified:
			fmt.Fprintln(w, "(modified)")
		default:
			fmt.Fprintln(w, "(no changes)")
		}
		fmt.Fprintln(w, "</file>")
	}
	return nil
}

func writeJSON(w io.Writer, report *model.Report, ctx RunContext, noWrite bool) error {
	start := runStartEvent{
		Type:            "run_start",
		SchemaVersion:   ctx.SchemaVersion,
		ToolVersion:     ctx.ToolVersion,
		Mode:            ctx.Mode,
		InputMode:       ctx.InputMode,
		TransactionMode: ctx.TransactionMode,
		DryRun:          report.DryRun,
		ValidateOnly:    report.ValidateOnly,
		NoWrite:         noWrite,
		Policies:        ctx.Policies,
	}
	if err := emit(w, start); err != nil {
		return err
	}

	for _, f := range report.Files {
		evt := fileEvent{Path: f.Path}
		switch {
		case f.Error != nil:
			evt.Type = "error"
			evt.Message = f.Error.Message
		case f.Skipped != "":
			evt.Type = "skipped"
			evt.Reason = skipReason(f.Skipped)
		default:
			evt.Type = "success"
			evt.Modified = f.Modified
			evt.Replacements = f.Replacements
			evt.Diff = f.Diff
			evt.BackupPath = f.BackupPath
			if f.GeneratedContent != nil {
				evt.GeneratedContent = string(f.GeneratedContent)
			}
		}
		if err := emit(w, evt); err != nil {
			return err
		}
	}

	end := runEndEvent{
		Type:              "run_end",
		TotalFiles:        report.Total,
		TotalModified:     report.Modified,
		TotalReplacements: report.Replacements,
		HasErrors:         report.HasErrors,
		PolicyViolation:   report.PolicyViolation,
		Committed:         report.Committed,
		DurationMS:        report.DurationMS,
		ExitCode:          report.ExitCode(),
	}
	return emit(w, end)
}

// writeCSV renders a replay-oriented log: one row per file with its
// outcome, backup path, and base64-encoded generated content, so
// internal/replay can reconstruct a revert or re-apply without depending on
// the human-readable diff text.
func writeCSV(w io.Writer, report *model.Report) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"file_path", "modified", "replacements", "skipped", "error", "backup_path", "generated_content_b64"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, f := range report.Files {
		errMsg := ""
		if f.Error != nil {
			errMsg = f.Error.Message
		}
		content := ""
		if f.GeneratedContent != nil {
			content = base64.StdEncoding.EncodeToString(f.GeneratedContent)
		}
		record := []string{
			f.Path,
			strconv.FormatBool(f.Modified),
			strconv.Itoa(f.Replacements),
			f.Skipped,
			errMsg,
			f.BackupPath,
			content,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	fmt.Fprintf(w, "# txed CSV report\n")
	fmt.Fprintf(w, "# Total files: %d\n", report.Total)
	fmt.Fprintf(w, "# Modified: %d\n", report.Modified)
	fmt.Fprintf(w, "# Replacements: %d\n", report.Replacements)
	fmt.Fprintf(w, "# Exit code: %d\n", report.ExitCode())
	return nil
}

func skipReason(reason string) string {
	switch reason {
	case "binary file":
		return "binary"
	case "symlink":
		return "symlink"
	case "glob exclude":
		return "glob_exclude"
	default:
		return "not_modified"
	}
}

func emit(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}
