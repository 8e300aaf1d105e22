package manager

import (
	"context"
	"fmt"
	"os"
)

// aptSource is a third-party package repository with an existence guard:
// the setup pipeline only runs when the marker file is absent, so re-runs
// never duplicate a source entry.
type aptSource struct {
	name   string
	marker string
	setup  string
}

func (im *InstallationManager) aptSources() []aptSource {
	return []aptSource{
		{
			name:   "php (ondrej/ppa)",
			marker: "/etc/apt/sources.list.d/ondrej-ubuntu-php-jammy.list",
			setup:  "LC_ALL=C.UTF-8 add-apt-repository -y ppa:ondrej/php",
		},
		{
			name:   "redis",
			marker: "/etc/apt/sources.list.d/redis.list",
			setup: "curl -fsSL https://packages.redis.io/gpg | gpg --dearmor -o /usr/share/keyrings/redis-archive-keyring.gpg && " +
				`echo "deb [signed-by=/usr/share/keyrings/redis-archive-keyring.gpg] https://packages.redis.io/deb jammy main" > /etc/apt/sources.list.d/redis.list`,
		},
		{
			name:   "mariadb",
			marker: "/etc/apt/sources.list.d/mariadb.list",
			setup:  "curl -fsSL https://downloads.mariadb.com/MariaDB/mariadb_repo_setup | bash",
		},
	}
}

var basePackages = []string{
	"curl", "tar", "unzip", "git", "software-properties-common", "ca-certificates", "gnupg",
	"nginx",
	"mariadb-server",
	"redis-server",
	"php" + PHPVersion, "php" + PHPVersion + "-cli", "php" + PHPVersion + "-common",
	"php" + PHPVersion + "-gd", "php" + PHPVersion + "-mysql", "php" + PHPVersion + "-mbstring",
	"php" + PHPVersion + "-bcmath", "php" + PHPVersion + "-xml", "php" + PHPVersion + "-fpm",
	"php" + PHPVersion + "-curl", "php" + PHPVersion + "-zip",
	"certbot",
	"composer",
}

// InstallPackages ensures the repositories and the package set required by
// every later stage. apt itself treats installed packages as no-ops, which
// keeps the whole stage safe to re-run.
func (im *InstallationManager) InstallPackages(ctx context.Context) error {
	for _, src := range im.aptSources() {
		if _, err := os.Stat(src.marker); err == nil {
			im.logger.Debug().Str("source", src.name).Msg("apt source already present, skipping")
			continue
		}
		im.logger.Info().Str("source", src.name).Msg("adding apt source")
		if err := im.runner.Shell(ctx, src.setup); err != nil {
			return fmt.Errorf("add apt source %s: %w", src.name, err)
		}
	}

	if err := im.runner.Run(ctx, "apt-get", "update", "-y"); err != nil {
		return fmt.Errorf("apt update: %w", err)
	}

	args := append([]string{"install", "-y"}, basePackages...)
	if err := im.runner.Run(ctx, "apt-get", args...); err != nil {
		return fmt.Errorf("apt install: %w", err)
	}

	for _, svc := range []string{"mariadb", "redis-server", "nginx"} {
		if err := im.runner.Run(ctx, "systemctl", "enable", "--now", svc); err != nil {
			return fmt.Errorf("enable %s: %w", svc, err)
		}
	}
	return nil
}
