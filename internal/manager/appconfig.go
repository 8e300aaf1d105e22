package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigureApplication drives the panel's own CLI: environment, datastore
// wiring, schema migration with seed data, and the administrative account.
// Each invocation is discrete and any non-zero exit aborts the run, because
// the service and proxy stages assume a fully migrated, keyed application.
func (im *InstallationManager) ConfigureApplication(ctx context.Context) error {
	env := filepath.Join(im.paths.AppDir, ".env")
	if _, err := os.Stat(env); os.IsNotExist(err) {
		if err := im.runner.Run(ctx, "cp",
			filepath.Join(im.paths.AppDir, ".env.example"), env); err != nil {
			return fmt.Errorf("seed environment file: %w", err)
		}
	}

	invocations := [][]string{
		{"key:generate", "--force"},
		{
			"p:environment:setup",
			"--author", im.request.AdminEmail,
			"--url", im.request.BaseURL(),
			"--timezone", im.request.Timezone,
			"--cache", "redis",
			"--session", "redis",
			"--queue", "redis",
			"--redis-host", RedisHost,
			"--redis-pass", "",
			"--redis-port", RedisPort,
			"--settings-ui", "true",
			"--no-interaction",
		},
		{
			"p:environment:database",
			"--host", DatabaseHost,
			"--port", DatabasePort,
			"--database", DatabaseName,
			"--username", DatabaseUser,
			"--password", im.creds.DatabasePassword,
			"--no-interaction",
		},
		{"migrate", "--seed", "--force"},
		{
			"p:user:make",
			"--email", im.request.AdminEmail,
			"--username", im.request.AdminUsername,
			"--name-first", im.request.FirstName,
			"--name-last", im.request.LastName,
			"--password", im.request.AdminPassword,
			"--admin", "1",
			"--no-interaction",
		},
	}

	for _, inv := range invocations {
		if err := im.artisan(ctx, inv...); err != nil {
			return fmt.Errorf("panel configuration (%s): %w", inv[0], err)
		}
	}

	// Some of the above run as root and leave root-owned caches behind.
	return im.chownAppDir(ctx)
}

func (im *InstallationManager) artisan(ctx context.Context, args ...string) error {
	full := append([]string{filepath.Join(im.paths.AppDir, "artisan")}, args...)
	return im.runner.Run(ctx, "php", full...)
}
