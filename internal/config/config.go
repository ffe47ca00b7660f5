// Package config implements txed's CLI-flag validation and normalization:
// early, composable validateX steps that fail fast before any file is
// touched, followed by a normalization pass that derives the final
// Pipeline the rest of the engine runs.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/jopamo/txed/internal/globfilter"
	"github.com/jopamo/txed/internal/input"
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/report"
	"github.com/jopamo/txed/internal/xerrors"
)

// Args holds every flag the CLI accepts, before validation. Fields named
// *Set record whether the corresponding flag was explicitly passed, so a
// manifest-driven run (--manifest) knows which fields to override versus
// leave at the manifest's own value.
type Args struct {
	Manifest string
	Find     string
	Replace  string
	Files    []string

	StdinPaths bool
	Files0     bool
	StdinText  bool
	RgJSON     bool
	FilesArg   bool

	Regex             bool
	FixedStrings      bool
	IgnoreCase        bool
	SmartCase         bool
	WordRegexp        bool
	Multiline         bool
	DotMatchesNewline bool
	NoUnicode         bool
	Limit             int
	Range             string
	Expand            bool
	Validation        model.ValidationMode

	GlobInclude []string
	GlobExclude []string

	DryRun       bool
	NoWrite      bool
	RequireMatch bool
	Expect       int // -1 means unset
	FailOnChange bool

	Transaction    model.Transaction
	TransactionSet bool
	Symlinks       model.SymlinkMode
	SymlinksSet    bool
	Binary         model.BinaryMode
	BinarySet      bool
	Permissions    model.PermissionMode
	PermissionsSet bool
	Mode           string // octal, e.g. "755"

	Backup      bool
	BackupExt   string
	Concurrency int

	JSON         bool
	Quiet        bool
	Format       report.Format
	FormatSet    bool
	ValidateOnly bool

	// Revert/apply-from-log (internal/replay), see SPEC_FULL.md §4.
	Revert    bool
	Apply     bool
	LogFile   string
	LogFormat string // "json" | "csv"
}

// NewArgs returns an Args with the sentinel defaults Build relies on to
// detect "not passed on the command line".
func NewArgs() *Args {
	return &Args{Expect: -1, LogFormat: "json"}
}

// Build validates Args and produces the Pipeline, input mode, and report
// format the rest of the program runs with. stdoutIsTTY describes the
// process's actual standard output, used only to pick a default report
// format when --format/--json were not given.
func (a *Args) Build(stdoutIsTTY bool) (*model.Pipeline, input.Mode, report.Format, error) {
	if err := a.validateInputModeFlags(); err != nil {
		return nil, 0, 0, err
	}
	if err := a.validateMatchFlags(); err != nil {
		return nil, 0, 0, err
	}

	pipeline, err := a.buildPipeline()
	if err != nil {
		return nil, 0, 0, err
	}

	if _, err := globfilter.New(pipeline.GlobInclude, pipeline.GlobExclude); err != nil {
		return nil, 0, 0, err
	}

	mode := input.Resolve(a.StdinPaths, a.Files0, a.StdinText, a.RgJSON)
	format := a.resolveFormat(mode, stdoutIsTTY)
	return pipeline, mode, format, nil
}

func (a *Args) validateInputModeFlags() error {
	set := 0
	for _, b := range []bool{a.StdinPaths, a.Files0, a.StdinText, a.RgJSON, a.FilesArg} {
		if b {
			set++
		}
	}
	if set > 1 {
		return xerrors.ValidationError("only one of --stdin-paths, --files0, --stdin-text, --rg-json, --files may be given", nil)
	}
	return nil
}

func (a *Args) validateMatchFlags() error {
	if a.Regex && a.FixedStrings {
		return xerrors.ValidationError("--regex and --fixed-strings are mutually exclusive", nil)
	}
	if a.Revert && a.Apply {
		return xerrors.ValidationError("--revert and --apply are mutually exclusive", nil)
	}
	if (a.Revert || a.Apply) && a.LogFile == "" {
		return xerrors.ValidationError("--log is required with --revert/--apply", nil)
	}
	if a.DryRun && a.ValidateOnly {
		return xerrors.ValidationError("--dry-run and --validate-only are mutually exclusive", nil)
	}
	return nil
}

// buildPipeline loads a manifest if one was given, overriding only the
// fields the caller explicitly passed on the command line; otherwise it
// constructs a single-operation Pipeline directly from the flags.
func (a *Args) buildPipeline() (*model.Pipeline, error) {
	if a.Manifest != "" {
		return a.loadManifest()
	}
	return a.buildPipelineFromFlags()
}

func (a *Args) loadManifest() (*model.Pipeline, error) {
	data, err := os.ReadFile(a.Manifest)
	if err != nil {
		return nil, xerrors.WrapIO(a.Manifest, err)
	}
	var p model.Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, xerrors.ValidationErrorWithPath(a.Manifest, "failed to parse manifest: "+err.Error(), err)
	}
	if len(p.Operations) == 0 {
		return nil, xerrors.ValidationErrorWithPath(a.Manifest, "manifest has no operations", nil)
	}

	if a.DryRun {
		p.DryRun = true
	}
	if a.NoWrite {
		p.NoWrite = true
	}
	if a.ValidateOnly {
		p.ValidateOnly = true
	}
	if a.RequireMatch {
		p.RequireMatch = true
	}
	if a.Expect >= 0 {
		expect := a.Expect
		p.Expect = &expect
	}
	if a.FailOnChange {
		p.FailOnChange = true
	}
	if a.TransactionSet {
		p.Transaction = a.Transaction
	}
	if a.SymlinksSet {
		p.Symlinks = a.Symlinks
	}
	if a.BinarySet {
		p.Binary = a.Binary
	}
	if err := a.applyPermissions(&p); err != nil {
		return nil, err
	}
	if len(a.GlobInclude) > 0 {
		p.GlobInclude = a.GlobInclude
	}
	if len(a.GlobExclude) > 0 {
		p.GlobExclude = a.GlobExclude
	}
	if a.Backup {
		p.Backup = true
	}
	if a.BackupExt != "" {
		p.BackupExt = a.BackupExt
	}
	if a.Concurrency > 0 {
		p.Concurrency = a.Concurrency
	}
	return &p, nil
}

func (a *Args) buildPipelineFromFlags() (*model.Pipeline, error) {
	if a.Find == "" {
		return nil, xerrors.ValidationError("FIND pattern is required unless --manifest is used", nil)
	}

	op, err := a.buildOperation()
	if err != nil {
		return nil, err
	}

	p := &model.Pipeline{
		Operations:   []model.Operation{op},
		DryRun:       a.DryRun,
		NoWrite:      a.NoWrite,
		RequireMatch: a.RequireMatch,
		FailOnChange: a.FailOnChange,
		Transaction:  a.Transaction,
		Symlinks:     a.Symlinks,
		Binary:       a.Binary,
		Permissions:  model.PermissionPreserve,
		ValidateOnly: a.ValidateOnly,
		GlobInclude:  a.GlobInclude,
		GlobExclude:  a.GlobExclude,
		Validation:   a.Validation,
		Backup:       a.Backup,
		BackupExt:    a.BackupExt,
		Concurrency:  a.Concurrency,
	}
	if a.Expect >= 0 {
		expect := a.Expect
		p.Expect = &expect
	}
	if err := a.applyPermissions(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Args) buildOperation() (model.Operation, error) {
	lineRange, err := parseRange(a.Range)
	if err != nil {
		return model.Operation{}, err
	}

	op := model.Operation{
		Find:              a.Find,
		With:              a.Replace,
		Literal:           !a.Regex,
		IgnoreCase:        a.IgnoreCase,
		SmartCase:         a.SmartCase,
		WordBoundary:      a.WordRegexp,
		Multiline:         a.Multiline,
		DotMatchesNewline: a.DotMatchesNewline,
		NoUnicode:         a.NoUnicode,
		Limit:             a.Limit,
		Range:             lineRange,
		Expand:            a.Expand,
	}
	return op, nil
}

// applyPermissions resolves --permissions/--mode into the Pipeline's
// Permissions/FixedMode fields. Fixed permissions require an explicit
// octal --mode.
func (a *Args) applyPermissions(p *model.Pipeline) error {
	if !a.PermissionsSet {
		return nil
	}
	p.Permissions = a.Permissions
	if a.Permissions != model.PermissionFixed {
		return nil
	}
	if a.Mode == "" {
		return xerrors.ValidationError("--mode <OCTAL> is required when --permissions fixed is used", nil)
	}
	m, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return xerrors.ValidationError("invalid octal mode: "+a.Mode, err)
	}
	p.FixedMode = uint32(m)
	return nil
}

// parseRange parses a 1-based "START[:END]" line range. A bare "N" means
// the single line N (start=end=N); "N:" means unbounded; "" means no
// range.
func parseRange(s string) (*model.LineRange, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ":", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, xerrors.ValidationError("invalid --range value: "+s, err)
	}

	if len(parts) == 1 {
		end := start
		return &model.LineRange{Start: start, End: &end}, nil
	}
	if parts[1] == "" {
		return &model.LineRange{Start: start}, nil
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, xerrors.ValidationError("invalid --range value: "+s, err)
	}
	return &model.LineRange{Start: start, End: &end}, nil
}

// resolveFormat picks the report.Format to use: an explicit --format/--json
// wins; otherwise a TTY gets human diff
// output and a pipe gets the JSON event stream, except stdin-text mode
// (whose payload is the transformed file content, not a report) which
// always prefers human output unless --json overrides it.
func (a *Args) resolveFormat(mode input.Mode, stdoutIsTTY bool) report.Format {
	if a.FormatSet {
		return a.Format
	}
	if a.JSON {
		return report.FormatJSON
	}
	if stdoutIsTTY || mode == input.ModeStdinText {
		return report.FormatHuman
	}
	return report.FormatJSON
}
