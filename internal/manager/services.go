package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quillhost/installer/assets"
	"github.com/quillhost/installer/internal/render"
)

// ServiceUnit is the data a supervisor unit template is rendered from.
type ServiceUnit struct {
	User               string
	Group              string
	WorkingDirectory   string
	ExecStart          string
	RestartSec         int
	StartLimitInterval int
	StartLimitBurst    int
}

const queueWorkerUnit = "panel-queue.service"

// RegisterServices installs the queue worker unit and the scheduler cron
// entry. The restart policy is rate-limited so a crash-looping worker
// cannot exhaust the host, and the cron registration is guarded against
// duplicates.
func (im *InstallationManager) RegisterServices(ctx context.Context) error {
	tmpl, err := assets.Template("queue-worker.service.tmpl")
	if err != nil {
		return err
	}

	unit := ServiceUnit{
		User:             ServiceUser,
		Group:            ServiceGroup,
		WorkingDirectory: im.paths.AppDir,
		ExecStart: fmt.Sprintf("/usr/bin/php %s queue:work --queue=high,standard,low --sleep=3 --tries=3",
			filepath.Join(im.paths.AppDir, "artisan")),
		RestartSec:         5,
		StartLimitInterval: 180,
		StartLimitBurst:    5,
	}

	unitPath := filepath.Join(im.paths.UnitDir, queueWorkerUnit)
	if err := render.File(queueWorkerUnit, tmpl, unit, unitPath, 0644); err != nil {
		return err
	}

	if err := im.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("systemd reload: %w", err)
	}
	if err := im.runner.Run(ctx, "systemctl", "enable", "--now", queueWorkerUnit); err != nil {
		return fmt.Errorf("enable queue worker: %w", err)
	}

	return im.registerScheduler(ctx)
}

// registerScheduler adds the per-minute scheduler entry to the service
// account's crontab unless it is already there.
func (im *InstallationManager) registerScheduler(ctx context.Context) error {
	line := fmt.Sprintf("* * * * * php %s schedule:run >> /dev/null 2>&1",
		filepath.Join(im.paths.AppDir, "artisan"))

	existing, err := im.runner.Output(ctx, "crontab", "-l", "-u", ServiceUser)
	if err != nil {
		// No crontab yet for the account; treated as empty.
		existing = ""
	}
	if strings.Contains(existing, "schedule:run") {
		im.logger.Debug().Msg("scheduler cron entry already registered, skipping")
		return nil
	}

	script := fmt.Sprintf(`(crontab -l -u %[1]s 2>/dev/null; echo "%[2]s") | crontab -u %[1]s -`,
		ServiceUser, line)
	if err := im.runner.Shell(ctx, script); err != nil {
		return fmt.Errorf("register scheduler cron entry: %w", err)
	}
	return nil
}
