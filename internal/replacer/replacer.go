// Package replacer implements txed's byte-level pattern engine: literal or
// regex matching, line-range and external allowlist filtering, and capture
// expansion, built on Go's RE2-based regexp package.
package replacer

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"unicode"

	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/validate"
	"github.com/jopamo/txed/internal/xerrors"
)

// Replacer applies one Replace operation to byte slices.
type Replacer struct {
	op      model.Operation
	literal bool // true: raw byte substring search, no regex involved
	find    []byte
	re      *regexp.Regexp
	with    []byte // expanded form only used when op.Expand; otherwise replacement bytes
}

// New builds a Replacer for the given operation. Validation of the
// replacement string's capture references happens here when op.Expand is
// set; diag receives warn-mode diagnostics (may be nil).
func New(op model.Operation, mode model.ValidationMode, diag func(string)) (*Replacer, error) {
	with := op.With
	if op.Expand {
		rewritten, err := validate.Validate(with, mode, diag)
		if err != nil {
			return nil, err
		}
		with = rewritten
	}

	r := &Replacer{op: op, with: []byte(with)}

	if useLiteralMatcher(op, with) {
		r.literal = true
		r.find = []byte(op.Find)
		return r, nil
	}

	pattern := op.Find
	if op.Literal {
		pattern = regexp.QuoteMeta(pattern)
	}
	if op.WordBoundary {
		pattern = `\b` + pattern + `\b`
	}

	flags := buildFlags(op, pattern)
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, xerrors.RegexError(fmt.Sprintf("invalid regex %q: %v", op.Find, err), err)
	}
	r.re = re
	return r, nil
}

// useLiteralMatcher reports whether the fast literal substring matcher
// applies: literal find, no case folding/word-boundary flags, and either
// no capture expansion or a replacement with no `$`.
func useLiteralMatcher(op model.Operation, with string) bool {
	if !op.Literal || op.IgnoreCase || op.SmartCase || op.WordBoundary {
		return false
	}
	if op.Expand && bytes.ContainsRune([]byte(with), '$') {
		return false
	}
	return true
}

// buildFlags computes the RE2 inline flag string ("ims", "i", ...) for the
// operation: ignore_case wins outright; otherwise smart_case applies
// case-insensitivity only when the pattern contains no uppercase letter.
func buildFlags(op model.Operation, pattern string) string {
	flags := ""
	caseInsensitive := op.IgnoreCase
	if !caseInsensitive && op.SmartCase {
		caseInsensitive = !hasUpper(pattern)
	}
	if caseInsensitive {
		flags += "i"
	}
	if op.Multiline {
		flags += "m"
	}
	if op.DotMatchesNewline {
		flags += "s"
	}
	if op.NoUnicode {
		// RE2 doesn't support a global "not unicode" flag, so NoUnicode
		// adds nothing to the pattern and has no effect on matching.
	}
	return flags
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// match is one candidate match location plus its submatch byte offsets
// (for capture expansion), relative to the subject.
type match struct {
	start, end int
	submatches []int // regexp.FindSubmatchIndex format, nil for literal matches
}

// findAll returns every match of the Replacer's pattern in text, in
// left-to-right order. For the literal matcher, submatches is always nil.
func (r *Replacer) findAll(text []byte) []match {
	if r.literal {
		if len(r.find) == 0 {
			return nil
		}
		var matches []match
		start := 0
		for {
			idx := bytes.Index(text[start:], r.find)
			if idx == -1 {
				break
			}
			ms := start + idx
			me := ms + len(r.find)
			matches = append(matches, match{start: ms, end: me})
			start = me
			if len(r.find) == 0 {
				start++
			}
		}
		return matches
	}

	idxs := r.re.FindAllSubmatchIndex(text, -1)
	matches := make([]match, 0, len(idxs))
	for _, sm := range idxs {
		matches = append(matches, match{start: sm[0], end: sm[1], submatches: sm})
	}
	return matches
}

// Replace applies the operation to text. It returns the new bytes (the
// original slice is never mutated; if nothing changed, the input is
// returned unmodified), the count of replacements actually performed, and
// an error. No UTF-8 check is made on the output, so the error is always
// nil.
//
// allowed is an optional sorted, non-overlapping allowlist of byte ranges:
// a match is only accepted if it intersects at least one allowed range.
// lineOf, if non-nil, maps a byte offset to its 1-based line number; it is
// used only when the operation carries a LineRange filter.
func (r *Replacer) Replace(text []byte, allowed []model.ReplacementRange, lineOf func(offset int) int) ([]byte, int, error) {
	matches := r.findAll(text)
	if len(matches) == 0 {
		return text, 0, nil
	}

	var out bytes.Buffer
	out.Grow(len(text))

	lastEnd := 0
	count := 0
	allowIdx := 0

	for _, m := range matches {
		if r.op.Range != nil {
			if lineOf == nil {
				continue
			}
			line := lineOf(m.start)
			if !r.op.Range.Contains(line) {
				continue
			}
		}

		if allowed != nil {
			for allowIdx < len(allowed) && allowed[allowIdx].End <= m.start {
				allowIdx++
			}
			if allowIdx >= len(allowed) {
				break
			}
			if !(allowed[allowIdx].Start < m.end) {
				continue
			}
		}

		if r.op.Limit > 0 && count >= r.op.Limit {
			break
		}

		out.Write(text[lastEnd:m.start])

		if r.op.Expand && !r.literal {
			out.Write(r.re.ExpandString(nil, string(r.with), string(text), m.submatches))
		} else {
			out.Write(r.with)
		}

		lastEnd = m.end
		count++
	}

	out.Write(text[lastEnd:])

	result := out.Bytes()
	if count == 0 {
		return text, 0, nil
	}
	return result, count, nil
}

// CountMatches reports how many times the pattern matches text, ignoring
// range/allowlist/limit filters.
func (r *Replacer) CountMatches(text []byte) int {
	return len(r.findAll(text))
}

// SortRanges returns a copy of ranges sorted by Start, so an allowlist
// built from unsorted input can be scanned in one left-to-right pass.
func SortRanges(ranges []model.ReplacementRange) []model.ReplacementRange {
	out := make([]model.ReplacementRange, len(ranges))
	copy(out, ranges)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
