package manager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quillhost/installer/assets"
	"github.com/quillhost/installer/internal/render"
	"github.com/quillhost/installer/internal/types"
)

// ProxyConfig is the data the panel vhost templates are rendered from.
type ProxyConfig struct {
	Domain     string
	AppDir     string
	PHPVersion string
	CertPath   string
	KeyPath    string
}

// SetupProxy renders and activates the panel vhost. With TLS requested, the
// certificate is obtained first; how a certbot failure is treated depends
// on the configured TLS policy: strict aborts the run, best-effort keeps
// the panel reachable over plain HTTP and tells the operator what to fix.
func (im *InstallationManager) SetupProxy(ctx context.Context) error {
	if err := im.runner.Run(ctx, "rm", "-f", filepath.Join(im.paths.NginxEnabled, "default")); err != nil {
		return fmt.Errorf("remove default site: %w", err)
	}

	withTLS := im.request.UseSSL
	if withTLS {
		if err := im.obtainCertificate(ctx, im.request.Domain); err != nil {
			if im.request.TLSPolicy == types.TLSPolicyStrict {
				return fmt.Errorf("certificate issuance for %s: %w", im.request.Domain, err)
			}
			im.logger.Warn().Err(err).Str("domain", im.request.Domain).
				Msg("certificate issuance failed; continuing without TLS. " +
					"Check that the domain's DNS record points at this host and port 80 is reachable, " +
					"then re-run: certbot certonly --standalone -d " + im.request.Domain)
			withTLS = false
		}
	}

	templateName := "panel-http.conf.tmpl"
	if withTLS {
		templateName = "panel-https.conf.tmpl"
	}
	tmpl, err := assets.Template(templateName)
	if err != nil {
		return err
	}

	cfg := ProxyConfig{
		Domain:     im.request.Domain,
		AppDir:     im.paths.AppDir,
		PHPVersion: PHPVersion,
		CertPath:   filepath.Join(im.paths.LetsEncryptDir, im.request.Domain, "fullchain.pem"),
		KeyPath:    filepath.Join(im.paths.LetsEncryptDir, im.request.Domain, "privkey.pem"),
	}

	available := filepath.Join(im.paths.NginxAvailable, "panel.conf")
	if err := render.File(templateName, tmpl, cfg, available, 0644); err != nil {
		return err
	}
	enabled := filepath.Join(im.paths.NginxEnabled, "panel.conf")
	if err := im.runner.Run(ctx, "ln", "-sf", available, enabled); err != nil {
		return fmt.Errorf("enable panel site: %w", err)
	}

	if err := im.runner.Run(ctx, "nginx", "-t"); err != nil {
		return fmt.Errorf("nginx config check: %w", err)
	}
	if err := im.runner.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("reload nginx: %w", err)
	}
	return nil
}

// obtainCertificate requests a certificate with certbot's standalone
// challenge server. nginx is stopped to free port 80 for the validation and
// brought back regardless of the outcome.
func (im *InstallationManager) obtainCertificate(ctx context.Context, domain string) error {
	if err := im.runner.Run(ctx, "systemctl", "stop", "nginx"); err != nil {
		return fmt.Errorf("stop nginx for challenge: %w", err)
	}
	certErr := im.runner.Run(ctx, "certbot", "certonly", "--standalone",
		"-d", domain,
		"--non-interactive", "--agree-tos",
		"-m", im.request.AdminEmail)
	if err := im.runner.Run(ctx, "systemctl", "start", "nginx"); err != nil {
		if certErr == nil {
			return fmt.Errorf("restart nginx after challenge: %w", err)
		}
		im.logger.Warn().Err(err).Msg("nginx did not come back after the failed challenge")
	}
	return certErr
}
