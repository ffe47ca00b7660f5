// Package txn implements txed's transaction manager: it collects staged
// writes across the files touched by a run and decides whether to commit
// them all together (TransactionAll) or independently per file
// (TransactionFile).
package txn

import (
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/stage"
)

// Entry pairs a staged write with the path it belongs to, for reporting.
type Entry struct {
	Path   string
	Staged *stage.StagedEntry
	Err    error
}

// Manager accumulates Entries across a run and commits or drops them
// according to the configured transaction model.
type Manager struct {
	mode    model.Transaction
	entries []Entry
}

// New returns a Manager for the given transaction model.
func New(mode model.Transaction) *Manager {
	return &Manager{mode: mode}
}

// Add records a staged write (or a failure to produce one) for path.
func (m *Manager) Add(path string, staged *stage.StagedEntry, err error) {
	m.entries = append(m.entries, Entry{Path: path, Staged: staged, Err: err})
}

// Outcome describes what happened to one entry after Finish.
type Outcome struct {
	Path      string
	Committed bool
	Err       error
}

// Finish applies the transaction model to every recorded entry and returns
// the per-path outcome. Under TransactionAll, a single failing entry drops
// every staged write (none are committed); under TransactionFile, each
// entry commits or drops independently.
func (m *Manager) Finish() []Outcome {
	switch m.mode {
	case model.TransactionAll:
		return m.finishAll()
	default:
		return m.finishPerFile()
	}
}

func (m *Manager) finishAll() []Outcome {
	anyFailed := false
	for _, e := range m.entries {
		if e.Err != nil {
			anyFailed = true
			break
		}
	}

	outcomes := make([]Outcome, 0, len(m.entries))
	for _, e := range m.entries {
		if anyFailed {
			if e.Staged != nil {
				e.Staged.Drop()
			}
			outcomes = append(outcomes, Outcome{Path: e.Path, Committed: false, Err: e.Err})
			continue
		}
		var commitErr error
		if e.Staged != nil {
			commitErr = e.Staged.Commit()
		}
		outcomes = append(outcomes, Outcome{Path: e.Path, Committed: commitErr == nil, Err: commitErr})
	}
	return outcomes
}

func (m *Manager) finishPerFile() []Outcome {
	outcomes := make([]Outcome, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Err != nil {
			if e.Staged != nil {
				e.Staged.Drop()
			}
			outcomes = append(outcomes, Outcome{Path: e.Path, Committed: false, Err: e.Err})
			continue
		}
		var commitErr error
		if e.Staged != nil {
			commitErr = e.Staged.Commit()
		}
		outcomes = append(outcomes, Outcome{Path: e.Path, Committed: commitErr == nil, Err: commitErr})
	}
	return outcomes
}

// CommitAll commits every recorded entry, skipping (and dropping) any entry
// that already carries a recorded error. Unlike Finish, a single failing
// entry does not drop the others — the caller is expected to have already
// decided, via higher-level policy, that committing is appropriate at all.
func (m *Manager) CommitAll() []Outcome {
	outcomes := make([]Outcome, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Err != nil {
			if e.Staged != nil {
				e.Staged.Drop()
			}
			outcomes = append(outcomes, Outcome{Path: e.Path, Committed: false, Err: e.Err})
			continue
		}
		var commitErr error
		if e.Staged != nil {
			commitErr = e.Staged.Commit()
		}
		outcomes = append(outcomes, Outcome{Path: e.Path, Committed: commitErr == nil, Err: commitErr})
	}
	return outcomes
}

// DropAll discards every staged entry without committing, regardless of
// per-entry errors — used when a post-run policy violation vetoes the
// whole transaction.
func (m *Manager) DropAll() {
	for _, e := range m.entries {
		if e.Staged != nil {
			e.Staged.Drop()
		}
	}
}

// AnyFailed reports whether any outcome failed to commit — used by the
// pipeline to mark a transaction=All run as having errors.
func AnyFailed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.Committed {
			return true
		}
	}
	return false
}
