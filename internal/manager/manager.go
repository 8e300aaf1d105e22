package manager

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhost/installer/internal/runner"
	"github.com/quillhost/installer/internal/types"
)

// Paths collects every fixed filesystem location a stage touches. Tests
// point these at temp directories.
type Paths struct {
	AppDir         string
	Meminfo        string
	NginxAvailable string
	NginxEnabled   string
	UnitDir        string
	WingsDir       string
	WingsBinary    string
	WingsDataDir   string
	LetsEncryptDir string
}

func DefaultPaths() Paths {
	return Paths{
		AppDir:         "/var/www/panel",
		Meminfo:        "/proc/meminfo",
		NginxAvailable: "/etc/nginx/sites-available",
		NginxEnabled:   "/etc/nginx/sites-enabled",
		UnitDir:        "/etc/systemd/system",
		WingsDir:       "/etc/wings",
		WingsBinary:    "/usr/local/bin/wings",
		WingsDataDir:   "/var/lib/wings",
		LetsEncryptDir: "/etc/letsencrypt/live",
	}
}

// InstallationManager executes the provisioning stages in order. Every
// external tool goes through the runner so exit status handling stays
// uniform; later stages read secrets and request values produced earlier.
type InstallationManager struct {
	runner  runner.Runner
	request *types.InstallRequest
	creds   *types.Credentials
	logger  zerolog.Logger
	paths   Paths

	httpClient *http.Client

	panelArchiveURL string
	wingsBinaryURL  string

	wingsPollAttempts int
	wingsPollDelay    time.Duration

	// Injection points for tests.
	dial         func(network, addr string, timeout time.Duration) (net.Conn, error)
	after        func(time.Duration) <-chan time.Time
	diskTotalMiB func(path string) (int64, error)
}

func NewInstallationManager(r runner.Runner, req *types.InstallRequest, creds *types.Credentials, logger zerolog.Logger) *InstallationManager {
	return &InstallationManager{
		runner:            r,
		request:           req,
		creds:             creds,
		logger:            logger.With().Str("component", "installer").Logger(),
		paths:             DefaultPaths(),
		httpClient:        &http.Client{Timeout: 10 * time.Minute},
		panelArchiveURL:   PanelArchiveURL,
		wingsBinaryURL:    WingsBinaryURL(),
		wingsPollAttempts: WingsPollAttempts,
		wingsPollDelay:    WingsPollDelay,
		dial:              net.DialTimeout,
		after:             time.After,
		diskTotalMiB:      statfsTotalMiB,
	}
}

// SetPaths overrides the fixed filesystem locations. Intended for tests.
func (im *InstallationManager) SetPaths(p Paths) { im.paths = p }

// download fetches url into dest. A non-2xx response fails before anything
// is written, so a later extraction can never run against a partial or
// bogus archive.
func (im *InstallationManager) download(ctx context.Context, url, dest string, perm os.FileMode) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp := dest + ".partial"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return nil
}

// chownAppDir resets application ownership to the service account. Several
// stages run tooling as root and leave root-owned files behind otherwise.
func (im *InstallationManager) chownAppDir(ctx context.Context) error {
	owner := fmt.Sprintf("%s:%s", ServiceUser, ServiceGroup)
	if err := im.runner.Run(ctx, "chown", "-R", owner, im.paths.AppDir); err != nil {
		return fmt.Errorf("reset ownership of %s: %w", im.paths.AppDir, err)
	}
	return nil
}
