package replacer

import "sort"

// LineIndex maps byte offsets to 1-based line numbers via binary search
// into a table of line-start offsets. The table is built lazily on first
// use.
type LineIndex struct {
	text    []byte
	starts  []int
	built   bool
}

// NewLineIndex returns a LineIndex over text; the offset table isn't built
// until the first call to LineAt.
func NewLineIndex(text []byte) *LineIndex {
	return &LineIndex{text: text}
}

func (l *LineIndex) ensureBuilt() {
	if l.built {
		return
	}
	l.starts = []int{0}
	for i, b := range l.text {
		if b == '\n' && i+1 < len(l.text) {
			l.starts = append(l.starts, i+1)
		}
	}
	l.built = true
}

// LineAt returns the 1-based line number containing the given byte offset.
func (l *LineIndex) LineAt(offset int) int {
	l.ensureBuilt()
	// Find the last line start <= offset.
	idx := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset })
	if idx == 0 {
		return 1
	}
	return idx
}
