// Package cmd implements txed's command-line interface: flag parsing and
// top-level orchestration built on cobra, with custom pflag.Value wrappers
// around internal/model's enum types for the multi-valued flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/jopamo/txed/internal/config"
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/report"

	"github.com/spf13/cobra"
)

var args = config.NewArgs()

var rootCmd = &cobra.Command{
	Use:   "txed [OPTIONS] FIND REPLACE [FILES...]",
	Short: "Transactional pattern-replace text across files",
	Long: `txed finds and replaces text across one or more files as a single
logical operation: every file is staged before anything is written, so a
failure partway through a run can be rolled back instead of leaving some
files changed and others not.`,
	Args: func(cmd *cobra.Command, rest []string) error {
		if args.Revert || args.Apply || args.Manifest != "" {
			return nil
		}
		return cobra.MinimumNArgs(2)(cmd, rest)
	},
	RunE: runTxed,
}

// exitCodeErr carries a Report's already-computed exit code through cobra's
// error-returning RunE without losing the distinction between 1 (operational
// failure), 2 (policy violation), and 3 (transaction aborted).
type exitCodeErr struct {
	code int
	err  error
}

func (e *exitCodeErr) Error() string { return e.err.Error() }
func (e *exitCodeErr) Unwrap() error { return e.err }

// Execute runs the root command and handles top-level error reporting,
// mapping the run's outcome onto the stable exit code taxonomy.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		if ec, ok := err.(*exitCodeErr); ok {
			os.Exit(ec.code)
		}
		os.Exit(model.ExitOperationalFailure)
	}
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVar(&args.Manifest, "manifest", "", "load the pipeline from a JSON manifest instead of FIND/REPLACE flags")

	flags.BoolVar(&args.StdinPaths, "stdin-paths", false, "read newline-delimited file paths from stdin")
	flags.BoolVar(&args.Files0, "files0", false, "read NUL-delimited file paths from stdin")
	flags.BoolVar(&args.StdinText, "stdin-text", false, "read file content from stdin and write the result to stdout")
	flags.BoolVar(&args.RgJSON, "rg-json", false, "read ripgrep/search-tool NDJSON match output from stdin")
	flags.BoolVar(&args.FilesArg, "files", false, "treat the positional FILES arguments as the input set (default)")

	flags.BoolVar(&args.Regex, "regex", false, "treat FIND as a regular expression")
	flags.BoolVar(&args.FixedStrings, "fixed-strings", false, "treat FIND as a literal string (default)")
	flags.BoolVarP(&args.IgnoreCase, "ignore-case", "i", false, "case-insensitive matching")
	flags.BoolVarP(&args.SmartCase, "smart-case", "S", false, "case-insensitive unless FIND contains an uppercase letter")
	flags.BoolVarP(&args.WordRegexp, "word-regexp", "w", false, "match only at word boundaries")
	flags.BoolVarP(&args.Multiline, "multiline", "U", false, "let ^ and $ match at line boundaries")
	flags.BoolVar(&args.DotMatchesNewline, "dot-matches-newline", false, "let . match a newline")
	flags.BoolVar(&args.NoUnicode, "no-unicode", false, "accepted but has no effect: the regex engine has no switch to turn off Unicode classes")
	flags.IntVar(&args.Limit, "limit", 0, "replace at most N matches per file (0 = unlimited)")
	flags.StringVar(&args.Range, "range", "", "restrict matches to 1-based line range START[:END]")
	flags.BoolVar(&args.Expand, "expand", false, "expand $1-style capture group references in REPLACE")
	flags.Var((*validationFlag)(&args.Validation), "validation", "ambiguous capture-group handling: strict, warn, none")

	flags.StringSliceVar(&args.GlobInclude, "glob", nil, "only process paths matching this glob (repeatable)")
	flags.StringSliceVar(&args.GlobExclude, "glob-exclude", nil, "skip paths matching this glob (repeatable)")

	flags.BoolVarP(&args.DryRun, "dry-run", "n", false, "compute and display changes without writing")
	flags.BoolVar(&args.NoWrite, "no-write", false, "compute changes but suppress all writes; unlike --dry-run, no diff is produced")
	flags.BoolVar(&args.RequireMatch, "require-match", false, "fail if no replacements are made across all inputs")
	flags.IntVar(&args.Expect, "expect", -1, "fail unless the total replacement count equals N")
	flags.BoolVar(&args.FailOnChange, "fail-on-change", false, "fail if any file would change (with --transaction=file, changed files are already written)")
	flags.BoolVar(&args.ValidateOnly, "validate-only", false, "run every check and compute replacements and diffs, but never write")

	flags.Var((*transactionFlag)(&args.Transaction), "transaction", "commit model: all (default, all-or-nothing) or file (per-file)")
	flags.Var((*symlinkFlag)(&args.Symlinks), "symlinks", "symlink handling: follow (default), skip, error")
	flags.Var((*binaryFlag)(&args.Binary), "binary", "binary file handling: skip (default), error")
	flags.Var((*permissionFlag)(&args.Permissions), "permissions", "written file mode: preserve (default), fixed")
	flags.StringVar(&args.Mode, "mode", "", "octal file mode to apply when --permissions=fixed")

	flags.BoolVar(&args.Backup, "backup", false, "keep a backup copy of every file this run modifies")
	flags.StringVar(&args.BackupExt, "backup-ext", "", "backup file suffix; recorded in the pipeline but not applied, backups are always named <file>.bak")
	flags.IntVar(&args.Concurrency, "concurrency", 0, "worker pool size (0 = auto, capped at 8)")

	flags.BoolVar(&args.JSON, "json", false, "emit the JSON event stream instead of human output")
	flags.BoolVarP(&args.Quiet, "quiet", "q", false, "use the summary format instead of human diff output (per-file lines without diffs)")
	flags.Var((*formatFlag)(&args.Format), "format", "output format: diff, summary, errors, json, agent")

	flags.BoolVarP(&args.Revert, "revert", "r", false, "revert the files recorded in --log from their backups")
	flags.BoolVar(&args.Apply, "apply", false, "re-apply the generated content recorded in --log")
	flags.StringVar(&args.LogFile, "log", "", "log file to revert/apply from")
	flags.StringVar(&args.LogFormat, "log-format", "json", "log file format: json or csv")

	rootCmd.MarkFlagsMutuallyExclusive("regex", "fixed-strings")
	rootCmd.MarkFlagsMutuallyExclusive("dry-run", "validate-only")
	rootCmd.MarkFlagsMutuallyExclusive("revert", "apply")
	rootCmd.MarkFlagsMutuallyExclusive("json", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("stdin-paths", "files0", "stdin-text", "rg-json", "files")
}

func runTxed(cmd *cobra.Command, rest []string) error {
	switch {
	case args.Revert, args.Apply:
		return executeReplay(args)
	case args.Manifest != "":
		args.Files = rest
	default:
		args.Find = rest[0]
		args.Replace = rest[1]
		args.Files = rest[2:]
	}

	if cmd.Flags().Changed("format") {
		args.FormatSet = true
	}
	if cmd.Flags().Changed("transaction") {
		args.TransactionSet = true
	}
	if cmd.Flags().Changed("symlinks") {
		args.SymlinksSet = true
	}
	if cmd.Flags().Changed("binary") {
		args.BinarySet = true
	}
	if cmd.Flags().Changed("permissions") || cmd.Flags().Changed("mode") {
		args.PermissionsSet = true
	}

	return executeTxed(args, cmd.OutOrStdout(), cmd.InOrStdin())
}

type transactionFlag model.Transaction

func (f *transactionFlag) String() string { return model.Transaction(*f).String() }
func (f *transactionFlag) Type() string    { return "string" }
func (f *transactionFlag) Set(v string) error {
	switch v {
	case "all":
		*f = transactionFlag(model.TransactionAll)
	case "file":
		*f = transactionFlag(model.TransactionFile)
	default:
		return fmt.Errorf("must be 'all' or 'file'")
	}
	return nil
}

type symlinkFlag model.SymlinkMode

func (f *symlinkFlag) String() string { return model.SymlinkMode(*f).String() }
func (f *symlinkFlag) Type() string   { return "string" }
func (f *symlinkFlag) Set(v string) error {
	switch v {
	case "follow":
		*f = symlinkFlag(model.SymlinkFollow)
	case "skip":
		*f = symlinkFlag(model.SymlinkSkip)
	case "error":
		*f = symlinkFlag(model.SymlinkError)
	default:
		return fmt.Errorf("must be 'follow', 'skip', or 'error'")
	}
	return nil
}

type binaryFlag model.BinaryMode

func (f *binaryFlag) String() string { return model.BinaryMode(*f).String() }
func (f *binaryFlag) Type() string   { return "string" }
func (f *binaryFlag) Set(v string) error {
	switch v {
	case "skip":
		*f = binaryFlag(model.BinarySkip)
	case "error":
		*f = binaryFlag(model.BinaryError)
	default:
		return fmt.Errorf("must be 'skip' or 'error'")
	}
	return nil
}

type permissionFlag model.PermissionMode

func (f *permissionFlag) String() string { return model.PermissionMode(*f).String() }
func (f *permissionFlag) Type() string   { return "string" }
func (f *permissionFlag) Set(v string) error {
	switch v {
	case "preserve":
		*f = permissionFlag(model.PermissionPreserve)
	case "fixed":
		*f = permissionFlag(model.PermissionFixed)
	default:
		return fmt.Errorf("must be 'preserve' or 'fixed'")
	}
	return nil
}

type validationFlag model.ValidationMode

func (f *validationFlag) String() string { return model.ValidationMode(*f).String() }
func (f *validationFlag) Type() string   { return "string" }
func (f *validationFlag) Set(v string) error {
	switch v {
	case "strict":
		*f = validationFlag(model.ValidationStrict)
	case "warn":
		*f = validationFlag(model.ValidationWarn)
	case "none":
		*f = validationFlag(model.ValidationNone)
	default:
		return fmt.Errorf("must be 'strict', 'warn', or 'none'")
	}
	return nil
}

type formatFlag report.Format

func (f *formatFlag) String() string { return formatName(report.Format(*f)) }
func (f *formatFlag) Type() string   { return "string" }
func (f *formatFlag) Set(v string) error {
	mode, ok := formatFromName(v)
	if !ok {
		return fmt.Errorf("must be 'diff', 'summary', 'errors', 'json', or 'agent'")
	}
	*f = formatFlag(mode)
	return nil
}

func formatName(f report.Format) string {
	switch f {
	case report.FormatSummary:
		return "summary"
	case report.FormatErrorsOnly:
		return "errors"
	case report.FormatJSON:
		return "json"
	case report.FormatAgent:
		return "agent"
	case report.FormatCSV:
		return "csv"
	default:
		return "diff"
	}
}

func formatFromName(v string) (report.Format, bool) {
	switch v {
	case "diff", "human":
		return report.FormatHuman, true
	case "summary":
		return report.FormatSummary, true
	case "errors":
		return report.FormatErrorsOnly, true
	case "json":
		return report.FormatJSON, true
	case "agent":
		return report.FormatAgent, true
	case "csv":
		return report.FormatCSV, true
	default:
		return 0, false
	}
}
