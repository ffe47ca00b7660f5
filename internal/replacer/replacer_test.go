package replacer

import (
	"testing"

	"github.com/jopamo/txed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, op model.Operation) *Replacer {
	t.Helper()
	r, err := New(op, model.ValidationStrict, nil)
	require.NoError(t, err)
	return r
}

func TestBasicLiteralReplace(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "world", With: "there", Literal: true})
	out, count, err := r.Replace([]byte("hello world\n"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there\n", string(out))
	assert.Equal(t, 1, count)
}

func TestLimit(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "x", With: "y", Literal: true, Limit: 2})
	out, count, err := r.Replace([]byte("x x x x"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "y y x x", string(out))
	assert.Equal(t, 2, count)
}

func TestLineRange(t *testing.T) {
	end := 3
	text := []byte("foo\nfoo\nfoo\nfoo")
	li := NewLineIndex(text)
	r := mustNew(t, model.Operation{
		Find: "foo", With: "bar", Literal: true,
		Range: &model.LineRange{Start: 2, End: &end},
	})
	out, count, err := r.Replace(text, nil, li.LineAt)
	require.NoError(t, err)
	assert.Equal(t, "foo\nbar\nbar\nfoo", string(out))
	assert.Equal(t, 2, count)
}

func TestAllowlistTargeting(t *testing.T) {
	text := []byte("foo\nfoo\nfoo\n")
	r := mustNew(t, model.Operation{Find: "foo", With: "bar", Literal: true})
	allowed := []model.ReplacementRange{{Start: 4, End: 7}}
	out, count, err := r.Replace(text, allowed, nil)
	require.NoError(t, err)
	assert.Equal(t, "foo\nbar\nfoo\n", string(out))
	assert.Equal(t, 1, count)
}

func TestCaptureExpansion(t *testing.T) {
	r := mustNew(t, model.Operation{Find: `(\d+)`, With: "number-$1", Expand: true})
	out, count, err := r.Replace([]byte("abc 123 def"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc number-123 def", string(out))
	assert.Equal(t, 1, count)
}

func TestAmbiguousCaptureStrictRejected(t *testing.T) {
	_, err := New(model.Operation{Find: `(\d+)`, With: "$1bad", Expand: true}, model.ValidationStrict, nil)
	require.Error(t, err)
}

func TestSmartCase(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "foo", With: "bar", SmartCase: true})
	out, count, err := r.Replace([]byte("FOO Foo foo"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, "bar bar bar", string(out))

	rUpper := mustNew(t, model.Operation{Find: "Foo", With: "bar", SmartCase: true})
	out2, count2, err := rUpper.Replace([]byte("FOO Foo foo"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count2)
	assert.Equal(t, "FOO bar foo", string(out2))
}

func TestWordBoundary(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "cat", With: "dog", WordBoundary: true})
	out, count, err := r.Replace([]byte("cat catalog concatenate"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "dog catalog concatenate", string(out))
}

func TestIdempotence(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "x", With: "y", Literal: true})
	first, count1, err := r.Replace([]byte("x x x"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count1)

	second, count2, err := r.Replace(first, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 0, count2)
}

func TestNoMatchReturnsOriginalSlice(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "zzz", With: "y", Literal: true})
	text := []byte("abc")
	out, count, err := r.Replace(text, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, "abc", string(out))
}

func TestCountMatches(t *testing.T) {
	r := mustNew(t, model.Operation{Find: "a", With: "b", Literal: true})
	assert.Equal(t, 3, r.CountMatches([]byte("aaa")))
}

func TestSortRanges(t *testing.T) {
	in := []model.ReplacementRange{{Start: 5, End: 6}, {Start: 1, End: 2}}
	out := SortRanges(in)
	assert.Equal(t, 1, out[0].Start)
	assert.Equal(t, 5, out[1].Start)
}
