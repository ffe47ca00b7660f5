// Package validate detects ambiguous capture-group references in
// replacement strings before they are expanded.
package validate

import (
	"fmt"
	"strings"

	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/xerrors"
)

// reference is one `$name`/`${name}`/`$digits` capture reference found in a
// replacement string, with the span it occupies (byte offsets into the
// original string).
type reference struct {
	name  string // inner name, without braces
	braced bool
	start int
	end   int
}

// scan walks s and yields every capture reference in left-to-right order.
// `$$` is an escaped dollar sign and is skipped.
func scan(s string) []reference {
	var refs []reference
	i := 0
	for i < len(s) {
		if s[i] != '$' {
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			i += 2
			continue
		}
		if i+1 >= len(s) {
			i++
			continue
		}
		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end == -1 {
				i++
				continue
			}
			name := s[i+2 : i+2+end]
			refs = append(refs, reference{name: name, braced: true, start: i, end: i + 2 + end + 1})
			i = i + 2 + end + 1
			continue
		}
		j := i + 1
		for j < len(s) && isCaptureChar(s[j]) {
			j++
		}
		if j == i+1 {
			i++
			continue
		}
		refs = append(refs, reference{name: s[i+1 : j], braced: false, start: i, end: j})
		i = j
	}
	return refs
}

func isCaptureChar(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

// leadingDigits returns the run of leading ASCII digits in name, and whether
// any non-digit characters follow them.
func leadingDigits(name string) (digits string, hasTrailing bool) {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}
	return name[:i], i < len(name)
}

// ambiguous reports whether an unbraced reference is ambiguous: it starts
// with one or more ASCII digits immediately followed by further identifier
// characters, so a reader cannot tell whether the intended group is the
// leading digit run or the whole identifier.
func ambiguous(ref reference) (digits string, isAmbiguous bool) {
	if ref.braced {
		return "", false
	}
	digits, hasTrailing := leadingDigits(ref.name)
	if digits == "" || !hasTrailing {
		return "", false
	}
	return digits, true
}

// Validate checks a replacement string's capture references against the
// given validation mode. In strict mode, an ambiguous reference is a
// terminal error. In warn mode, ambiguous references are rewritten to their
// braced form and a diagnostic is written to diag (if non-nil); the
// rewritten string is returned. In none mode, the string passes through
// unchanged without inspection.
func Validate(replacement string, mode model.ValidationMode, diag func(string)) (string, error) {
	if mode == model.ValidationNone {
		return replacement, nil
	}

	refs := scan(replacement)
	for _, ref := range refs {
		digits, isAmb := ambiguous(ref)
		if !isAmb {
			continue
		}
		switch mode {
		case model.ValidationStrict:
			return "", xerrors.AmbiguousReplacementError(fmt.Sprintf(
				"ambiguous capture group reference `$%s` followed by non-digit characters; use `${%s}` to disambiguate",
				ref.name, digits))
		case model.ValidationWarn:
			return rewrite(replacement, refs, diag), nil
		}
	}
	return replacement, nil
}

// rewrite replaces every ambiguous unbraced reference `$<digits><rest>` with
// `${<digits>}<rest>`, emitting a diagnostic per rewrite, and passes braced
// references through unchanged.
func rewrite(replacement string, refs []reference, diag func(string)) string {
	var b strings.Builder
	i := 0
	refIdx := 0
	for i < len(replacement) {
		if refIdx < len(refs) && refs[refIdx].start == i {
			ref := refs[refIdx]
			refIdx++
			if digits, isAmb := ambiguous(ref); isAmb {
				if diag != nil {
					diag(fmt.Sprintf("rewriting ambiguous reference $%s to ${%s}%s", ref.name, digits, ref.name[len(digits):]))
				}
				b.WriteString("${")
				b.WriteString(digits)
				b.WriteString("}")
				b.WriteString(ref.name[len(digits):])
			} else if ref.braced {
				b.WriteString("${")
				b.WriteString(ref.name)
				b.WriteString("}")
			} else {
				b.WriteByte('$')
				b.WriteString(ref.name)
			}
			i = ref.end
			continue
		}
		b.WriteByte(replacement[i])
		i++
	}
	return b.String()
}

// IsAmbiguous is exported for callers (e.g. suggestion text in CLI help)
// that want to test a single reference string without full validation.
func IsAmbiguous(name string) bool {
	_, isAmb := ambiguous(reference{name: name})
	return isAmb
}
