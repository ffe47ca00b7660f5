// Package input implements txed's input normalizer: it turns the caller's
// selected input mode into a uniform sequence of model.InputItem, reading
// paths or content from stdin as each mode requires.
package input

import (
	"bufio"
	"io"
	"strings"

	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/replacer"
	"github.com/jopamo/txed/internal/searchstream"
	"github.com/jopamo/txed/internal/xerrors"
)

// Mode selects how input items are produced.
type Mode int

const (
	// ModeAuto uses the provided path args, falling back to newline-
	// delimited stdin paths when args are empty and stdin is piped.
	ModeAuto Mode = iota
	ModeStdinPathsNewline
	ModeStdinPathsNul
	ModeStdinText
	ModeSearchToolJSON
)

// Resolve picks the input mode from the mutually-exclusive mode flags:
// stdin-text wins over search-tool JSON, which wins over NUL-delimited
// paths, which wins over newline-delimited paths, and Auto is the default
// when none are set.
func Resolve(stdinPaths, files0, stdinText, searchJSON bool) Mode {
	switch {
	case stdinText:
		return ModeStdinText
	case searchJSON:
		return ModeSearchToolJSON
	case files0:
		return ModeStdinPathsNul
	case stdinPaths:
		return ModeStdinPathsNewline
	default:
		return ModeAuto
	}
}

// Normalize produces the InputItem sequence for the given mode. stdin is
// read only when the mode requires it; args is the path list from the
// command line; stdinIsPipe indicates whether standard input is non-
// interactive (used by ModeAuto's fallback).
func Normalize(mode Mode, args []string, stdin io.Reader, stdinIsPipe bool) ([]model.InputItem, error) {
	switch mode {
	case ModeStdinPathsNewline:
		paths, err := readPathsNewline(stdin)
		if err != nil {
			return nil, err
		}
		return pathItems(paths), nil

	case ModeStdinPathsNul:
		paths, err := readPathsNul(stdin)
		if err != nil {
			return nil, err
		}
		return pathItems(paths), nil

	case ModeStdinText:
		text, err := io.ReadAll(stdin)
		if err != nil {
			return nil, xerrors.IOError("<stdin>", "failed to read stdin text", err)
		}
		return []model.InputItem{{Kind: model.InputStdinText, Path: "<stdin>", StdinText: text}}, nil

	case ModeSearchToolJSON:
		grouped, err := searchstream.Decode(stdin)
		if err != nil {
			return nil, xerrors.ValidationError("failed to parse search tool json: "+err.Error(), nil)
		}
		items := make([]model.InputItem, 0, len(grouped))
		for _, g := range grouped {
			items = append(items, model.InputItem{
				Kind:         model.InputSearchMatches,
				Path:         g.Path,
				SearchRanges: replacer.SortRanges(g.Ranges),
			})
		}
		return items, nil

	default: // ModeAuto
		if len(args) > 0 {
			return pathItems(args), nil
		}
		if !stdinIsPipe {
			return nil, nil
		}
		paths, err := readPathsNewline(stdin)
		if err != nil {
			return nil, err
		}
		return pathItems(paths), nil
	}
}

func pathItems(paths []string) []model.InputItem {
	items := make([]model.InputItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, model.InputItem{Kind: model.InputPath, Path: p})
	}
	return items
}

func readPathsNewline(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.IOError("<stdin>", "failed to read paths from stdin", err)
	}
	return paths, nil
}

func readPathsNul(r io.Reader) ([]string, error) {
	var paths []string
	reader := bufio.NewReader(r)
	for {
		record, err := reader.ReadBytes(0)
		if len(record) > 0 {
			if record[len(record)-1] == 0 {
				record = record[:len(record)-1]
			}
			if len(record) > 0 {
				paths = append(paths, string(record))
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, xerrors.IOError("<stdin>", "failed to read NUL-delimited paths from stdin", err)
		}
	}
	return paths, nil
}
