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

func TestConfigureApplication_SeedsEnvironmentOnce(t *testing.T) {
	im, fake := newTestManager(t, testRequest())

	require.NoError(t, im.ConfigureApplication(context.Background()))
	assert.True(t, fake.has("cp "+filepath.Join(im.paths.AppDir, ".env.example")))

	// With .env present the copy must be skipped.
	require.NoError(t, os.MkdirAll(im.paths.AppDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(im.paths.AppDir, ".env"), []byte("APP_KEY="), 0644))
	fake.calls = nil
	require.NoError(t, im.ConfigureApplication(context.Background()))
	assert.False(t, fake.has("cp "), "existing environment file must not be overwritten")
}

func TestConfigureApplication_InvocationOrder(t *testing.T) {
	im, fake := newTestManager(t, testRequest())

	require.NoError(t, im.ConfigureApplication(context.Background()))

	order := []string{
		"key:generate",
		"p:environment:setup",
		"p:environment:database",
		"migrate --seed --force",
		"p:user:make",
		"chown -R",
	}
	prev := -1
	for _, step := range order {
		idx := fake.indexOf(step)
		require.GreaterOrEqual(t, idx, 0, "missing invocation %q", step)
		assert.Greater(t, idx, prev, "%q ran out of order", step)
		prev = idx
	}
}

func TestConfigureApplication_PassesRequestValues(t *testing.T) {
	req := testRequest()
	req.UseSSL = true
	im, fake := newTestManager(t, req)

	require.NoError(t, im.ConfigureApplication(context.Background()))

	setup := fake.lines()[fake.indexOf("p:environment:setup")]
	assert.Contains(t, setup, "--url https://panel.example.com")
	assert.Contains(t, setup, "--timezone Etc/UTC")
	assert.Contains(t, setup, "--cache redis")

	db := fake.lines()[fake.indexOf("p:environment:database")]
	assert.Contains(t, db, "--password "+testCredentials().DatabasePassword)

	user := fake.lines()[fake.indexOf("p:user:make")]
	assert.Contains(t, user, "--username admin")
	assert.Contains(t, user, "--admin 1")
}

func TestConfigureApplication_AbortsOnFailedInvocation(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	fake.runErr = func(c call) error {
		if strings.Contains(c.line(), "migrate") {
			return errors.New("SQLSTATE[HY000]")
		}
		return nil
	}

	err := im.ConfigureApplication(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
	assert.False(t, fake.has("p:user:make"), "account creation must not run after a failed migration")
}
