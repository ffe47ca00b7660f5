// Package pipeline implements txed's execution pipeline: the orchestrator
// that turns a Pipeline configuration and a stream of InputItems into a
// Report. Work is fanned out to a worker pool sized to runtime.NumCPU
// (capped at 8, or the configured concurrency), with jobs and results
// passed over buffered channels and results reassembled in input order.
package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/jopamo/txed/internal/globfilter"
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/policy"
	"github.com/jopamo/txed/internal/replacer"
	"github.com/jopamo/txed/internal/stage"
	"github.com/jopamo/txed/internal/txn"
	"github.com/jopamo/txed/internal/xerrors"
	"github.com/pmezard/go-difflib/difflib"
)

// Diagnostic is a warn-mode validation message surfaced alongside a Report.
type Diagnostic struct {
	Path    string
	Message string
}

// Run executes the pipeline over items and returns the aggregate Report.
// diagSink, if non-nil, receives validate=warn diagnostics as they occur.
func Run(p *model.Pipeline, items []model.InputItem, diagSink func(Diagnostic)) (*model.Report, error) {
	if len(items) == 0 {
		return nil, xerrors.ValidationError("no input items provided", nil)
	}
	if len(p.Operations) == 0 {
		return nil, xerrors.ValidationError("no operations configured", nil)
	}

	policy.EnforcePreExecution(p)

	filter, err := globfilter.New(p.GlobInclude, p.GlobExclude)
	if err != nil {
		return nil, err
	}

	var manager *txn.Manager
	stageForCommit := p.Transaction == model.TransactionAll
	if stageForCommit {
		manager = txn.New(model.TransactionAll)
	}

	results := processItems(p, items, filter, manager, diagSink)

	report := &model.Report{DryRun: p.DryRun, ValidateOnly: p.ValidateOnly}
	for _, r := range results {
		report.AddResult(r)
	}

	enforcer := policy.New(p)
	enforcer.EnforcePostRun(report)

	switch {
	case stageForCommit:
		if enforcer.ShouldCommit(report) {
			outcomes := manager.CommitAll()
			if txn.AnyFailed(outcomes) {
				report.HasErrors = true
			} else {
				report.Committed = true
			}
		} else {
			manager.DropAll()
		}
	case p.Transaction == model.TransactionFile:
		report.TransactionAborted = report.HasErrors
		report.Committed = !report.TransactionAborted && enforcer.ShouldCommit(report)
	}

	return report, nil
}

type indexedResult struct {
	index  int
	result model.FileResult
}

// processItems runs processOne over items using a bounded worker pool, then
// reassembles results in input order so the Report's ordering is
// deterministic regardless of scheduling.
func processItems(p *model.Pipeline, items []model.InputItem, filter *globfilter.Filter, manager *txn.Manager, diagSink func(Diagnostic)) []model.FileResult {
	workerCount := runtime.NumCPU()
	if workerCount > 8 {
		workerCount = 8
	}
	if p.Concurrency > 0 && p.Concurrency < workerCount {
		workerCount = p.Concurrency
	}
	if workerCount > len(items) {
		workerCount = len(items)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	type job struct {
		index int
		item  model.InputItem
	}

	jobs := make(chan job, len(items))
	out := make(chan indexedResult, len(items))

	var wg sync.WaitGroup
	var mu sync.Mutex // guards manager.Add, which is not safe for concurrent callers

	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				fr := processOne(p, j.item, filter, diagSink)
				switch {
				case manager != nil:
					mu.Lock()
					stageForTransaction(manager, p, &fr)
					mu.Unlock()
				case p.Transaction == model.TransactionFile:
					commitDirect(p, &fr)
				}
				out <- indexedResult{index: j.index, result: fr}
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	ordered := make([]model.FileResult, len(items))
	for r := range out {
		ordered[r.index] = r.result
	}
	return ordered
}

// stageForTransaction stages (but does not commit) a modified, non-virtual
// result's new content, recording it on the shared Manager for a later
// all-or-nothing commit decision.
func stageForTransaction(manager *txn.Manager, p *model.Pipeline, fr *model.FileResult) {
	if !writable(p, fr) {
		return
	}
	se, err := stage.Stage(fr.Path, fr.GeneratedContent, writeOptions(p))
	if err != nil {
		fr.Error = asResultError(err)
	} else {
		fr.BackupPath = se.BackupPath()
	}
	manager.Add(fr.Path, se, err)
}

// commitDirect stages and immediately commits a modified, non-virtual
// result — the transaction=File write model, where each file commits
// independently instead of waiting on the rest of the run.
func commitDirect(p *model.Pipeline, fr *model.FileResult) {
	if !writable(p, fr) {
		return
	}
	se, err := stage.Stage(fr.Path, fr.GeneratedContent, writeOptions(p))
	if err != nil {
		fr.Error = asResultError(err)
		return
	}
	fr.BackupPath = se.BackupPath()
	if err := se.Commit(); err != nil {
		fr.Error = asResultError(err)
	}
}

func writable(p *model.Pipeline, fr *model.FileResult) bool {
	if fr.Error != nil || fr.IsVirtual {
		return false
	}
	return policy.New(p).CanWrite(fr.Modified)
}

func writeOptions(p *model.Pipeline) stage.WriteOptions {
	return stage.WriteOptions{
		Permissions: p.Permissions,
		FixedMode:   os.FileMode(p.FixedMode),
		Symlinks:    p.Symlinks,
		Backup:      p.Backup,
		BackupPath:  "",
	}
}

// processOne applies every operation in sequence to one input item and
// returns its FileResult, without performing any write — callers decide
// whether/how to commit based on the pipeline's transaction model.
func processOne(p *model.Pipeline, item model.InputItem, filter *globfilter.Filter, diagSink func(Diagnostic)) model.FileResult {
	result := model.FileResult{Path: item.Path, IsVirtual: item.Kind == model.InputStdinText}

	if item.Kind == model.InputPath || item.Kind == model.InputSearchMatches {
		if !filter.Selected(item.Path) {
			result.Skipped = "glob exclude"
			return result
		}
	}

	original, err := readItem(p, item, &result)
	if err != nil || result.Skipped != "" {
		return result
	}

	current := original
	totalReplacements := 0

	for opIdx, op := range p.Operations {
		var applyAllowed []model.ReplacementRange
		if opIdx == 0 && item.SearchRanges != nil {
			applyAllowed = item.SearchRanges
		}

		path := item.Path
		diag := func(msg string) {
			if diagSink != nil {
				diagSink(Diagnostic{Path: path, Message: msg})
			}
		}

		r, err := replacer.New(op, p.Validation, diag)
		if err != nil {
			result.Error = asResultError(err)
			return result
		}

		var lineOf func(int) int
		if op.Range != nil {
			li := replacer.NewLineIndex(current)
			lineOf = li.LineAt
		}

		next, count, err := r.Replace(current, applyAllowed, lineOf)
		if err != nil {
			result.Error = asResultError(err)
			return result
		}
		current = next
		totalReplacements += count
	}

	result.Replacements = totalReplacements
	result.Modified = !bytes.Equal(current, original)
	result.GeneratedContent = current

	if p.DryRun {
		result.Diff = unifiedDiff(item.Path, original, current)
	}
	return result
}

// readItem loads the bytes for one item, applying the symlink and binary
// gates for path-backed items. On skip or error it records the outcome on
// result and returns a nil byte slice.
func readItem(p *model.Pipeline, item model.InputItem, result *model.FileResult) ([]byte, error) {
	if item.Kind == model.InputStdinText {
		return item.StdinText, nil
	}

	info, lstatErr := os.Lstat(item.Path)
	if lstatErr != nil {
		err := xerrors.NotFoundError(item.Path, lstatErr)
		result.Error = asResultError(err)
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		switch p.Symlinks {
		case model.SymlinkSkip:
			result.Skipped = "symlink"
			return nil, nil
		case model.SymlinkError:
			err := xerrors.IOError(item.Path, "refusing to follow symlink", nil)
			result.Error = asResultError(err)
			return nil, err
		}
	}

	data, readErr := os.ReadFile(item.Path)
	if readErr != nil {
		err := xerrors.WrapIO(item.Path, readErr)
		result.Error = asResultError(err)
		return nil, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		if p.Binary == model.BinaryError {
			err := xerrors.IOError(item.Path, "binary content not permitted", nil)
			result.Error = asResultError(err)
			return nil, err
		}
		result.Skipped = "binary file"
		return nil, nil
	}
	return data, nil
}

func asResultError(err error) *model.ResultError {
	if err == nil {
		return nil
	}
	if xe, ok := err.(*xerrors.Error); ok {
		return &model.ResultError{Code: string(xe.Code), Message: xe.Error()}
	}
	return &model.ResultError{Code: string(xerrors.Unknown), Message: err.Error()}
}

func unifiedDiff(path string, before, after []byte) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("<diff error: %v>", err)
	}
	return text
}
