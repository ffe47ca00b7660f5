package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jopamo/txed/internal/input"
	"github.com/jopamo/txed/internal/model"
	"github.com/jopamo/txed/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFromFlagsBasic(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"
	a.Files = []string{"a.txt"}

	p, mode, format, err := a.Build(true)
	require.NoError(t, err)
	require.Len(t, p.Operations, 1)
	assert.Equal(t, "foo", p.Operations[0].Find)
	assert.Equal(t, "bar", p.Operations[0].With)
	assert.True(t, p.Operations[0].Literal)
	assert.Equal(t, input.ModeAuto, mode)
	assert.Equal(t, report.FormatHuman, format)
}

func TestBuildRegexDisablesLiteral(t *testing.T) {
	a := NewArgs()
	a.Find = "f(o+)"
	a.Replace = "$1"
	a.Regex = true

	p, _, _, err := a.Build(true)
	require.NoError(t, err)
	assert.False(t, p.Operations[0].Literal)
}

func TestBuildRejectsRegexAndFixedStrings(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Regex = true
	a.FixedStrings = true

	_, _, _, err := a.Build(true)
	assert.Error(t, err)
}

func TestBuildRejectsMultipleInputModes(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.StdinPaths = true
	a.Files0 = true

	_, _, _, err := a.Build(true)
	assert.Error(t, err)
}

func TestBuildRequiresFindWithoutManifest(t *testing.T) {
	a := NewArgs()
	_, _, _, err := a.Build(true)
	assert.Error(t, err)
}

func TestBuildFixedPermissionsRequireMode(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"
	a.Permissions = model.PermissionFixed
	a.PermissionsSet = true

	_, _, _, err := a.Build(true)
	assert.Error(t, err)

	a.Mode = "644"
	p, _, _, err := a.Build(true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0o644), p.FixedMode)
}

func TestBuildDefaultsFormatByTTY(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"

	_, _, format, err := a.Build(false)
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, format)

	_, _, format, err = a.Build(true)
	require.NoError(t, err)
	assert.Equal(t, report.FormatHuman, format)
}

func TestBuildJSONFlagOverridesTTY(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"
	a.JSON = true

	_, _, format, err := a.Build(true)
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, format)
}

func TestBuildStdinTextPrefersHumanEvenWhenPiped(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"
	a.StdinText = true

	_, mode, format, err := a.Build(false)
	require.NoError(t, err)
	assert.Equal(t, input.ModeStdinText, mode)
	assert.Equal(t, report.FormatHuman, format)
}

func TestParseRangeVariants(t *testing.T) {
	r, err := parseRange("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseRange("5")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 5, r.Start)
	require.NotNil(t, r.End)
	assert.Equal(t, 5, *r.End)

	r, err = parseRange("3:")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Start)
	assert.Nil(t, r.End)

	r, err = parseRange("3:10")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Start)
	require.NotNil(t, r.End)
	assert.Equal(t, 10, *r.End)

	_, err = parseRange("not-a-number")
	assert.Error(t, err)
}

func TestBuildDryRunValidateOnlyConflict(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"
	a.DryRun = true
	a.ValidateOnly = true

	_, _, _, err := a.Build(true)
	assert.Error(t, err)
}

func TestBuildRevertRequiresLogFile(t *testing.T) {
	a := NewArgs()
	a.Find = "foo"
	a.Replace = "bar"
	a.Revert = true

	_, _, _, err := a.Build(true)
	assert.Error(t, err)
}

func TestBuildManifestOverridesOnlyExplicitFlags(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	manifest := []byte(`{
		"operations": [{"find": "foo", "with": "bar", "literal": true}],
		"transaction": "file",
		"backup": true
	}`)
	require.NoError(t, os.WriteFile(manifestPath, manifest, 0o644))

	a := NewArgs()
	a.Manifest = manifestPath
	a.DryRun = true

	p, _, _, err := a.Build(true)
	require.NoError(t, err)
	assert.True(t, p.DryRun)
	assert.Equal(t, model.TransactionFile, p.Transaction)
	assert.True(t, p.Backup)
}
