package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jopamo/txed/internal/config"
	"github.com/jopamo/txed/internal/input"
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/pipeline"
	"github.com/jopamo/txed/internal/replay"
	"github.com/jopamo/txed/internal/report"
	"github.com/jopamo/txed/internal/xerrors"

	"golang.org/x/term"
)

const toolVersion = "0.1.0"
const schemaVersion = "1"

// executeTxed builds the Pipeline from args, normalizes the input items,
// runs the pipeline, writes the report, and translates the resulting exit
// code into a returned error so Execute can set the matching process exit
// status.
func executeTxed(a *config.Args, stdout io.Writer, stdin io.Reader) error {
	stdoutIsTTY := term.IsTerminal(int(os.Stdout.Fd()))

	p, mode, format, err := a.Build(stdoutIsTTY)
	if err != nil {
		return err
	}

	stdinIsPipe := !term.IsTerminal(int(os.Stdin.Fd()))
	items, err := input.Normalize(mode, a.Files, stdin, stdinIsPipe)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return xerrors.ValidationError("no input files given; pass FILES, pipe paths via stdin, or use --stdin-text", nil)
	}

	start := time.Now()
	var diagnostics []pipeline.Diagnostic
	rep, err := pipeline.Run(p, items, func(d pipeline.Diagnostic) {
		diagnostics = append(diagnostics, d)
	})
	if err != nil {
		return err
	}
	rep.DurationMS = time.Since(start).Milliseconds()

	if mode == input.ModeStdinText {
		return writeStdinTextResult(stdout, rep)
	}

	if err := writeReport(stdout, a, p, mode, rep, format); err != nil {
		return err
	}
	for _, d := range diagnostics {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", d.Path, d.Message)
	}

	if code := rep.ExitCode(); code != model.ExitSuccess {
		return &exitCodeErr{code: code, err: summaryError(rep)}
	}
	return nil
}

func summaryError(rep *model.Report) error {
	switch {
	case rep.TransactionAborted:
		return xerrors.New(xerrors.Transaction, "transaction aborted: one or more files failed; other files may already have been written", nil)
	case rep.PolicyViolation != "":
		return xerrors.ValidationError(rep.PolicyViolation, nil)
	default:
		return xerrors.New(xerrors.Unknown, "one or more files failed", nil)
	}
}

// writeStdinTextResult writes the single transformed payload straight to
// stdout: in --stdin-text mode the output IS the transformed content, not a
// report.
func writeStdinTextResult(stdout io.Writer, rep *model.Report) error {
	if len(rep.Files) != 1 {
		return xerrors.ValidationError("stdin-text mode expects exactly one result", nil)
	}
	f := rep.Files[0]
	if f.Error != nil {
		return xerrors.New(xerrors.Code(f.Error.Code), f.Error.Message, nil)
	}
	_, err := stdout.Write(f.GeneratedContent)
	return err
}

func writeReport(stdout io.Writer, a *config.Args, p *model.Pipeline, mode input.Mode, rep *model.Report, format report.Format) error {
	if a.Quiet && format == report.FormatHuman {
		format = report.FormatSummary
	}
	var expect *int
	if a.Expect >= 0 {
		expect = &a.Expect
	}
	ctx := report.RunContext{
		SchemaVersion:   schemaVersion,
		ToolVersion:     toolVersion,
		Mode:            "cli",
		InputMode:       inputModeName(mode),
		TransactionMode: p.Transaction.String(),
		Policies: report.Policies{
			RequireMatch: a.RequireMatch,
			Expect:       expect,
			FailOnChange: a.FailOnChange,
		},
	}
	return report.Write(stdout, rep, format, ctx, a.NoWrite)
}

func inputModeName(mode input.Mode) string {
	switch mode {
	case input.ModeStdinPathsNewline:
		return "stdin-paths"
	case input.ModeStdinPathsNul:
		return "files0"
	case input.ModeStdinText:
		return "stdin-text"
	case input.ModeSearchToolJSON:
		return "rg-json"
	default:
		return "files"
	}
}

// executeReplay dispatches --revert/--apply against the recorded log.
func executeReplay(a *config.Args) error {
	format := replay.FormatJSON
	if a.LogFormat == "csv" {
		format = replay.FormatCSV
	}
	entries, err := replay.ParseLog(a.LogFile, format)
	if err != nil {
		return err
	}

	var outcomes []replay.Outcome
	verb := "revert"
	if a.Apply {
		verb = "apply"
		outcomes = replay.Apply(entries)
	} else {
		outcomes = replay.Revert(entries)
	}

	msg, err := replay.Summarize(verb, outcomes)
	fmt.Fprintln(os.Stdout, msg)
	return err
}
