// Package searchstream decodes the newline-delimited JSON stream produced by
// external search tools (ripgrep's --json output and compatible producers),
// grouping match submatches by file into absolute byte ranges, and
// tolerates producers that interleave messages from multiple files across
// threads.
package searchstream

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/jopamo/txed/internal/model"
)

// Kind is the rg message type discriminant.
type Kind string

const (
	KindBegin   Kind = "begin"
	KindMatch   Kind = "match"
	KindContext Kind = "context"
	KindEnd     Kind = "end"
	KindSummary Kind = "summary"
)

// textOrBytes models rg's untagged {text} | {bytes: base64} union.
type textOrBytes struct {
	Text  *string `json:"text,omitempty"`
	Bytes *string `json:"bytes,omitempty"`
}

// resolve returns the decoded bytes: raw UTF-8 for the text form, base64
// decoded for the bytes form (used for non-UTF-8 paths).
func (t *textOrBytes) resolve() (string, bool) {
	if t == nil {
		return "", false
	}
	if t.Text != nil {
		return *t.Text, true
	}
	if t.Bytes != nil {
		raw, err := base64.StdEncoding.DecodeString(*t.Bytes)
		if err != nil {
			return "", false
		}
		return string(raw), true
	}
	return "", false
}

type submatch struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type rgData struct {
	Path           *textOrBytes `json:"path"`
	AbsoluteOffset *int64       `json:"absolute_offset"`
	Submatches     []submatch   `json:"submatches"`
}

type rgMessage struct {
	Type Kind    `json:"type"`
	Data *rgData `json:"data"`
}

// PathMatches is the accumulated allowlist for one file path.
type PathMatches struct {
	Path   string
	Ranges []model.ReplacementRange
}

// DeinterleavingSink groups match events by path, tolerating producers that
// interleave Begin/Match/End events across multiple files (e.g. a
// multi-threaded search tool). Path order in Results() follows first
// occurrence.
type DeinterleavingSink struct {
	order  []string
	byPath map[string]*PathMatches
}

// NewDeinterleavingSink returns an empty sink.
func NewDeinterleavingSink() *DeinterleavingSink {
	return &DeinterleavingSink{byPath: make(map[string]*PathMatches)}
}

func (s *DeinterleavingSink) entry(path string) *PathMatches {
	if e, ok := s.byPath[path]; ok {
		return e
	}
	e := &PathMatches{Path: path}
	s.byPath[path] = e
	s.order = append(s.order, path)
	return e
}

func (s *DeinterleavingSink) handle(msg rgMessage) {
	if msg.Type != KindMatch || msg.Data == nil {
		return
	}
	path, ok := msg.Data.Path.resolve()
	if !ok || msg.Data.AbsoluteOffset == nil {
		return
	}
	abs := *msg.Data.AbsoluteOffset
	entry := s.entry(path)
	for _, sm := range msg.Data.Submatches {
		entry.Ranges = append(entry.Ranges, model.ReplacementRange{
			Start: int(abs + sm.Start),
			End:   int(abs + sm.End),
		})
	}
}

// Results returns the grouped matches in first-seen path order.
func (s *DeinterleavingSink) Results() []PathMatches {
	out := make([]PathMatches, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, *s.byPath[p])
	}
	return out
}

// Decode reads an NDJSON search-tool stream from r and returns the grouped
// per-path match ranges. Lines that fail to parse as JSON, or that parse
// but lack a usable path/offset, are silently skipped.
func Decode(r io.Reader) ([]PathMatches, error) {
	sink := NewDeinterleavingSink()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg rgMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		sink.handle(msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sink.Results(), nil
}
