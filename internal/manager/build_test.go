package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, im *InstallationManager) {
	t.Helper()
	dir := filepath.Join(im.paths.AppDir, "public", "build")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0644))
}

func TestBuildDependencies_RunsAsServiceAccount(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	writeManifest(t, im)

	require.NoError(t, im.BuildDependencies(context.Background()))

	for _, c := range fake.calls {
		if c.name == "composer" || c.name == "yarn" {
			assert.Equal(t, ServiceUser, c.user, "%s must run as the service account", c.name)
		}
	}
	assert.True(t, fake.has("composer install"))
	assert.True(t, fake.has("run build:production"))
}

func TestBuildDependencies_FallsBackToDevBuild(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	writeManifest(t, im)
	fake.runErr = func(c call) error {
		if strings.Contains(c.line(), "build:production") {
			return errors.New("heap out of memory")
		}
		return nil
	}

	require.NoError(t, im.BuildDependencies(context.Background()))
	assert.Contains(t, fake.lines(), "yarn --cwd "+im.paths.AppDir+" run build",
		"development build fallback expected")
}

func TestBuildDependencies_MissingManifestOverridesSuccess(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	// Every tool exits 0, but no manifest is produced.

	err := im.BuildDependencies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest.json")
	assert.True(t, fake.has("ls -ld"), "ownership diagnostics expected on failure")
}

func TestBuildDependencies_ComposerFailureDumpsOwnership(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	fake.runErr = func(c call) error {
		if c.name == "composer" {
			return errors.New("could not write to vendor/")
		}
		return nil
	}

	err := im.BuildDependencies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composer install")
	assert.True(t, fake.has("ls -ld"))
	assert.False(t, fake.has("yarn"), "yarn must not run after composer failed")
}
