package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BuildDependencies runs the panel's own dependency manager and asset
// builder as the service account. Running these as root corrupts ownership
// of generated files, which is the single most common failure mode for
// installs of this kind, so on any failure the surrounding ownership state
// is dumped before aborting.
func (im *InstallationManager) BuildDependencies(ctx context.Context) error {
	if err := im.runner.RunAs(ctx, ServiceUser, "composer", "install",
		"--no-dev", "--optimize-autoloader",
		"--working-dir", im.paths.AppDir, "--no-interaction"); err != nil {
		im.dumpOwnership(ctx)
		return fmt.Errorf("composer install: %w", err)
	}

	if err := im.runner.RunAs(ctx, ServiceUser, "yarn", "--cwd", im.paths.AppDir,
		"install", "--frozen-lockfile"); err != nil {
		im.dumpOwnership(ctx)
		return fmt.Errorf("yarn install: %w", err)
	}

	if err := im.runner.RunAs(ctx, ServiceUser, "yarn", "--cwd", im.paths.AppDir,
		"run", "build:production"); err != nil {
		im.logger.Warn().Err(err).Msg("production asset build failed, retrying with development build")
		if err := im.runner.RunAs(ctx, ServiceUser, "yarn", "--cwd", im.paths.AppDir,
			"run", "build"); err != nil {
			im.dumpOwnership(ctx)
			return fmt.Errorf("asset build: %w", err)
		}
	}

	// The builder has been observed to exit 0 without producing output when
	// it runs out of memory. Trust the artifact, not the exit code.
	manifest := filepath.Join(im.paths.AppDir, "public", "build", "manifest.json")
	if _, err := os.Stat(manifest); err != nil {
		im.dumpOwnership(ctx)
		return fmt.Errorf("asset build reported success but %s is missing", manifest)
	}

	return nil
}

// dumpOwnership logs who owns the application tree so permission mismatches
// between the installer account and the service account are debuggable from
// the failure output alone.
func (im *InstallationManager) dumpOwnership(ctx context.Context) {
	targets := []string{
		im.paths.AppDir,
		filepath.Join(im.paths.AppDir, "vendor"),
		filepath.Join(im.paths.AppDir, "node_modules"),
		filepath.Join(im.paths.AppDir, "storage"),
	}
	for _, target := range targets {
		out, err := im.runner.Output(ctx, "ls", "-ld", target)
		if err != nil {
			continue
		}
		im.logger.Error().Str("path", target).Msg("ownership: " + out)
	}
}
