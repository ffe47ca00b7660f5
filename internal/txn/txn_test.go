package txn

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageFile(t *testing.T, dir, name, content string) *stage.StagedEntry {
	t.Helper()
	target := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(target, []byte("orig"), 0o644))
	entry, err := stage.Stage(target, []byte(content), stage.WriteOptions{Permissions: model.PermissionPreserve})
	require.NoError(t, err)
	return entry
}

func TestTransactionAllCommitsWhenNoFailures(t *testing.T) {
	dir := t.TempDir()
	e1 := stageFile(t, dir, "a.txt", "A")
	e2 := stageFile(t, dir, "b.txt", "B")

	m := New(model.TransactionAll)
	m.Add(e1.Target(), e1, nil)
	m.Add(e2.Target(), e2, nil)

	outcomes := m.Finish()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Committed)
	}
	assert.False(t, AnyFailed(outcomes))

	a, _ := os.ReadFile(e1.Target())
	b, _ := os.ReadFile(e2.Target())
	assert.Equal(t, "A", string(a))
	assert.Equal(t, "B", string(b))
}

func TestTransactionAllDropsEverythingOnOneFailure(t *testing.T) {
	dir := t.TempDir()
	e1 := stageFile(t, dir, "a.txt", "A")
	e2 := stageFile(t, dir, "b.txt", "B")

	m := New(model.TransactionAll)
	m.Add(e1.Target(), e1, nil)
	m.Add(e2.Target(), nil, errors.New("boom"))

	outcomes := m.Finish()
	require.Len(t, outcomes, 2)
	assert.True(t, AnyFailed(outcomes))
	for _, o := range outcomes {
		assert.False(t, o.Committed)
	}

	a, _ := os.ReadFile(e1.Target())
	assert.Equal(t, "orig", string(a))
}

func TestTransactionFileCommitsIndependently(t *testing.T) {
	dir := t.TempDir()
	e1 := stageFile(t, dir, "a.txt", "A")
	e2 := stageFile(t, dir, "b.txt", "B")

	m := New(model.TransactionFile)
	m.Add(e1.Target(), e1, nil)
	m.Add(e2.Target(), nil, errors.New("boom"))

	outcomes := m.Finish()
	require.Len(t, outcomes, 2)
	assert.True(t, AnyFailed(outcomes))

	a, _ := os.ReadFile(e1.Target())
	assert.Equal(t, "A", string(a))

	b, _ := os.ReadFile(e2.Target())
	assert.Equal(t, "orig", string(b))
}
