// Package replay implements txed's log replay: reverting or re-applying the
// file changes recorded in a previously emitted report, reading back the
// JSON event stream or CSV rows internal/report produced.
package replay

import (
	"bufio"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/stage"
	"github.com/jopamo/txed/internal/xerrors"
)

// Format selects which log encoding ParseLog expects.
type Format int

const (
	FormatJSON Format = iota
	FormatCSV
)

// Entry is one file's outcome as recorded in a log, reduced to what revert
// and apply need: the target path, whether it was modified, the backup
// copy's path (if any), the content that was written (if any), and whether
// the run recorded an error for it.
type Entry struct {
	Path             string
	Modified         bool
	BackupPath       string
	GeneratedContent []byte
	HadError         bool
}

// Outcome reports what happened to one path during a revert or apply.
type Outcome struct {
	Path    string
	Applied bool
	Err     error
}

// ParseLog reads a log file previously produced by internal/report (JSON
// event stream or CSV rows) and returns the entries worth replaying.
func ParseLog(path string, format Format) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.WrapIO(path, err)
	}
	switch format {
	case FormatCSV:
		return parseCSV(path, data)
	default:
		return parseJSON(path, data)
	}
}

// envelope covers the fields used across run_start/file/run_end events;
// only the "file" events with type success/error are kept.
type envelope struct {
	Type             string `json:"type"`
	Path             string `json:"path"`
	Modified         bool   `json:"modified"`
	GeneratedContent string `json:"generated_content"`
	BackupPath       string `json:"backup_path"`
	Message          string `json:"message"`
}

func parseJSON(path string, data []byte) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev envelope
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue // skip unparsable lines, same tolerance as searchstream.Decode
		}
		if ev.Type != "success" && ev.Type != "error" {
			continue
		}
		e := Entry{
			Path:       ev.Path,
			Modified:   ev.Modified,
			BackupPath: ev.BackupPath,
			HadError:   ev.Type == "error",
		}
		if ev.GeneratedContent != "" {
			e.GeneratedContent = []byte(ev.GeneratedContent)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.IOError(path, "failed to read log file", err)
	}
	if len(entries) == 0 {
		return nil, xerrors.ValidationErrorWithPath(path, "no replayable file entries found in log", nil)
	}
	return entries, nil
}

func parseCSV(path string, data []byte) ([]Entry, error) {
	var rows []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		return nil, xerrors.ValidationErrorWithPath(path, "no CSV data found in log file", nil)
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(rows, "\n")))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, xerrors.ValidationErrorWithPath(path, "failed to parse CSV log", err)
	}
	if len(records) < 2 {
		return nil, xerrors.ValidationErrorWithPath(path, "no records found in CSV log", nil)
	}

	var entries []Entry
	for _, record := range records[1:] { // skip header
		if len(record) < 7 {
			continue
		}
		modified, _ := strconv.ParseBool(record[1])
		e := Entry{
			Path:       record[0],
			Modified:   modified,
			HadError:   record[4] != "",
			BackupPath: record[5],
		}
		if record[6] != "" {
			decoded, err := base64.StdEncoding.DecodeString(record[6])
			if err == nil {
				e.GeneratedContent = decoded
			}
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, xerrors.ValidationErrorWithPath(path, "no replayable rows found in CSV log", nil)
	}
	return entries, nil
}

// Revert restores every modified, error-free entry's target from its
// recorded backup copy. An entry with no backup path cannot be reverted
// (txed keeps no undo history beyond per-run rollback) and is reported as
// a failed Outcome rather than silently skipped.
func Revert(entries []Entry) []Outcome {
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		if !e.Modified || e.HadError {
			continue
		}
		if e.BackupPath == "" {
			outcomes = append(outcomes, Outcome{Path: e.Path, Err: xerrors.ValidationErrorWithPath(
				e.Path, "no backup recorded for this entry; cannot revert", nil)})
			continue
		}
		outcomes = append(outcomes, Outcome{Path: e.Path, Err: restoreFromBackup(e.Path, e.BackupPath)})
	}
	for i := range outcomes {
		outcomes[i].Applied = outcomes[i].Err == nil
	}
	return outcomes
}

// Apply re-writes every modified, error-free entry's recorded generated
// content to its target path — redoing a run whose report was produced
// with --dry-run or transaction=file partial failure.
func Apply(entries []Entry) []Outcome {
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		if !e.Modified || e.HadError {
			continue
		}
		if e.GeneratedContent == nil {
			outcomes = append(outcomes, Outcome{Path: e.Path, Err: xerrors.ValidationErrorWithPath(
				e.Path, "no generated content recorded for this entry; cannot apply", nil)})
			continue
		}
		outcomes = append(outcomes, Outcome{Path: e.Path, Err: writeDirect(e.Path, e.GeneratedContent)})
	}
	for i := range outcomes {
		outcomes[i].Applied = outcomes[i].Err == nil
	}
	return outcomes
}

func restoreFromBackup(target, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return xerrors.NotFoundError(backupPath, err)
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return xerrors.IOError(backupPath, "failed to read backup file", err)
	}
	return writeDirect(target, data)
}

func writeDirect(target string, data []byte) error {
	se, err := stage.Stage(target, data, stage.WriteOptions{Permissions: model.PermissionPreserve, Symlinks: model.SymlinkFollow})
	if err != nil {
		return err
	}
	if err := se.Commit(); err != nil {
		return err
	}
	return nil
}

// Summarize renders a short human summary of a batch of Outcomes: how many
// paths succeeded and how many failed.
func Summarize(verb string, outcomes []Outcome) (string, error) {
	ok, failed := 0, 0
	var firstErr error
	for _, o := range outcomes {
		if o.Applied {
			ok++
		} else {
			failed++
			if firstErr == nil {
				firstErr = o.Err
			}
		}
	}
	msg := fmt.Sprintf("%s completed: %d succeeded, %d failed", verb, ok, failed)
	if failed > 0 {
		return msg, xerrors.New(xerrors.Transaction, msg, firstErr)
	}
	return msg, nil
}
