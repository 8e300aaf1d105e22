package manager

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/quillhost/installer/assets"
	"github.com/quillhost/installer/internal/render"
	"github.com/quillhost/installer/internal/types"
)

const wingsUnit = "wings.service"

// WingsConfig is the node agent's structured configuration file.
type WingsConfig struct {
	Debug   bool   `yaml:"debug"`
	UUID    string `yaml:"uuid"`
	TokenID string `yaml:"token_id"`
	Token   string `yaml:"token"`
	API     struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		SSL  struct {
			Enabled bool   `yaml:"enabled"`
			Cert    string `yaml:"cert"`
			Key     string `yaml:"key"`
		} `yaml:"ssl"`
		UploadLimit    int      `yaml:"upload_limit"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"api"`
	System struct {
		Data string `yaml:"data"`
		SFTP struct {
			BindPort int `yaml:"bind_port"`
		} `yaml:"sftp"`
	} `yaml:"system"`
	Docker struct {
		Network struct {
			Interface string `yaml:"interface"`
			Name      string `yaml:"name"`
		} `yaml:"network"`
	} `yaml:"docker"`
	Remote string `yaml:"remote"`
}

// nodeIdentity is what the registration step hands to the config renderer.
type nodeIdentity struct {
	ID   int64
	UUID string
}

// InstallWings provisions the companion daemon: container runtime, agent
// binary, node registration against the datastore, rendered configuration,
// supervisor unit, optional TLS and proxy vhost, and a start-up check on
// the control port.
func (im *InstallationManager) InstallWings(ctx context.Context) error {
	if err := im.installDocker(ctx); err != nil {
		return err
	}

	im.logger.Info().Str("url", im.wingsBinaryURL).Msg("downloading node agent")
	if err := im.download(ctx, im.wingsBinaryURL, im.paths.WingsBinary, 0755); err != nil {
		return err
	}

	node, err := im.registerNode(ctx)
	if err != nil {
		return err
	}

	nodeTLS := false
	if im.request.UseSSL && im.request.NodeDomain != "" {
		if err := im.obtainCertificate(ctx, im.request.NodeDomain); err != nil {
			if im.request.TLSPolicy == types.TLSPolicyStrict {
				return fmt.Errorf("certificate issuance for %s: %w", im.request.NodeDomain, err)
			}
			im.logger.Warn().Err(err).Str("domain", im.request.NodeDomain).
				Msg("node certificate issuance failed; agent API stays on plain HTTP. " +
					"Fix DNS for the node domain and re-run certbot manually")
		} else {
			nodeTLS = true
		}
	}

	if err := im.writeWingsConfig(node, nodeTLS); err != nil {
		return err
	}

	if im.request.NodeDomain != "" {
		if err := im.writeWingsVhost(ctx, nodeTLS); err != nil {
			return err
		}
	}

	if err := im.installWingsUnit(ctx); err != nil {
		return err
	}

	return im.waitForControlPort(ctx)
}

func (im *InstallationManager) installDocker(ctx context.Context) error {
	if err := im.runner.Run(ctx, "docker", "--version"); err == nil {
		im.logger.Debug().Msg("container runtime already installed, skipping")
	} else {
		if err := im.runner.Shell(ctx, "curl -fsSL https://get.docker.com | CHANNEL=stable bash"); err != nil {
			return fmt.Errorf("install container runtime: %w", err)
		}
	}
	if err := im.runner.Run(ctx, "systemctl", "enable", "--now", "docker"); err != nil {
		return fmt.Errorf("enable container runtime: %w", err)
	}
	return nil
}

// registerNode creates the location and node records through the panel's
// CLI, guarded by existence queries so re-runs reuse the same records, then
// stamps the run's generated daemon token so the rendered config and the
// datastore agree.
func (im *InstallationManager) registerNode(ctx context.Context) (nodeIdentity, error) {
	fqdn := im.request.NodeDomain
	if fqdn == "" {
		fqdn = im.request.Domain
	}
	scheme := "http"
	if im.request.UseSSL && im.request.NodeDomain != "" {
		scheme = "https"
	}

	locID, err := im.querySQL(ctx, fmt.Sprintf(
		"SELECT id FROM %s.locations WHERE short = '%s';", DatabaseName, NodeLocationShort))
	if err != nil {
		return nodeIdentity{}, fmt.Errorf("look up location: %w", err)
	}
	if strings.TrimSpace(locID) == "" {
		if err := im.artisan(ctx, "p:location:make",
			"--short", NodeLocationShort,
			"--long", NodeLocationLong,
			"--no-interaction"); err != nil {
			return nodeIdentity{}, fmt.Errorf("create location: %w", err)
		}
		locID, err = im.querySQL(ctx, fmt.Sprintf(
			"SELECT id FROM %s.locations WHERE short = '%s';", DatabaseName, NodeLocationShort))
		if err != nil {
			return nodeIdentity{}, fmt.Errorf("look up location after create: %w", err)
		}
	}
	locationID := strings.TrimSpace(locID)

	memMiB, err := im.hostMemoryMiB()
	if err != nil {
		return nodeIdentity{}, err
	}
	if err := os.MkdirAll(im.paths.WingsDataDir, 0755); err != nil {
		return nodeIdentity{}, fmt.Errorf("create %s: %w", im.paths.WingsDataDir, err)
	}
	diskMiB, err := im.diskTotalMiB(im.paths.WingsDataDir)
	if err != nil {
		return nodeIdentity{}, err
	}

	safeMem := im.request.Reserve.SafeMemoryMiB(memMiB)
	safeDisk := im.request.Reserve.SafeDiskMiB(diskMiB)
	im.logger.Info().
		Int64("memory_mib", safeMem).
		Int64("disk_mib", safeDisk).
		Msg("computed node capacity")

	existing, err := im.querySQL(ctx, fmt.Sprintf(
		"SELECT id, uuid FROM %s.nodes WHERE fqdn = '%s';", DatabaseName, fqdn))
	if err != nil {
		return nodeIdentity{}, fmt.Errorf("look up node: %w", err)
	}
	if strings.TrimSpace(existing) == "" {
		if err := im.artisan(ctx, "p:node:make",
			"--name", "node01",
			"--description", "Installed by quillhost installer",
			"--locationId", locationID,
			"--fqdn", fqdn,
			"--public", "1",
			"--scheme", scheme,
			"--proxy", "0",
			"--maintenance", "0",
			"--maxMemory", strconv.FormatInt(safeMem, 10),
			"--overallocateMemory", "0",
			"--maxDisk", strconv.FormatInt(safeDisk, 10),
			"--overallocateDisk", "0",
			"--uploadSize", "100",
			"--daemonListeningPort", strconv.Itoa(WingsDaemonPort),
			"--daemonSFTPPort", strconv.Itoa(WingsSFTPPort),
			"--daemonBase", im.paths.WingsDataDir,
			"--no-interaction"); err != nil {
			return nodeIdentity{}, fmt.Errorf("create node record: %w", err)
		}
		existing, err = im.querySQL(ctx, fmt.Sprintf(
			"SELECT id, uuid FROM %s.nodes WHERE fqdn = '%s';", DatabaseName, fqdn))
		if err != nil {
			return nodeIdentity{}, fmt.Errorf("look up node after create: %w", err)
		}
	}

	fields := strings.Fields(strings.TrimSpace(existing))
	if len(fields) < 2 {
		return nodeIdentity{}, fmt.Errorf("unexpected node lookup result %q", existing)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nodeIdentity{}, fmt.Errorf("parse node id %q: %w", fields[0], err)
	}
	node := nodeIdentity{ID: id, UUID: fields[1]}

	if err := im.execSQL(ctx, fmt.Sprintf(
		"UPDATE %s.nodes SET daemon_token_id = '%s', daemon_token = '%s' WHERE id = %d;",
		DatabaseName, im.creds.NodeTokenID, im.creds.NodeToken, node.ID)); err != nil {
		return nodeIdentity{}, fmt.Errorf("stamp daemon token: %w", err)
	}

	return node, nil
}

func (im *InstallationManager) writeWingsConfig(node nodeIdentity, nodeTLS bool) error {
	cfg := WingsConfig{
		UUID:    node.UUID,
		TokenID: im.creds.NodeTokenID,
		Token:   im.creds.NodeToken,
		Remote:  im.request.BaseURL(),
	}
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = WingsDaemonPort
	cfg.API.UploadLimit = 100
	cfg.API.TrustedProxies = []string{"127.0.0.1/32"}
	if nodeTLS {
		cfg.API.SSL.Enabled = true
		cfg.API.SSL.Cert = filepath.Join(im.paths.LetsEncryptDir, im.request.NodeDomain, "fullchain.pem")
		cfg.API.SSL.Key = filepath.Join(im.paths.LetsEncryptDir, im.request.NodeDomain, "privkey.pem")
	}
	cfg.System.Data = filepath.Join(im.paths.WingsDataDir, "volumes")
	cfg.System.SFTP.BindPort = WingsSFTPPort
	cfg.Docker.Network.Interface = "172.18.0.1"
	cfg.Docker.Network.Name = "pterodactyl_nw"

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal wings config: %w", err)
	}
	if err := os.MkdirAll(im.paths.WingsDir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", im.paths.WingsDir, err)
	}
	path := filepath.Join(im.paths.WingsDir, "config.yml")
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (im *InstallationManager) writeWingsVhost(ctx context.Context, nodeTLS bool) error {
	tmpl, err := assets.Template("wings-vhost.conf.tmpl")
	if err != nil {
		return err
	}

	data := struct {
		Domain     string
		ListenPort int
		DaemonPort int
		SSL        bool
		CertPath   string
		KeyPath    string
		PanelURL   string
	}{
		Domain:     im.request.NodeDomain,
		ListenPort: WingsVhostPort,
		DaemonPort: WingsDaemonPort,
		SSL:        nodeTLS,
		CertPath:   filepath.Join(im.paths.LetsEncryptDir, im.request.NodeDomain, "fullchain.pem"),
		KeyPath:    filepath.Join(im.paths.LetsEncryptDir, im.request.NodeDomain, "privkey.pem"),
		PanelURL:   im.request.BaseURL(),
	}

	available := filepath.Join(im.paths.NginxAvailable, "wings.conf")
	if err := render.File("wings-vhost", tmpl, data, available, 0644); err != nil {
		return err
	}
	if err := im.runner.Run(ctx, "ln", "-sf", available,
		filepath.Join(im.paths.NginxEnabled, "wings.conf")); err != nil {
		return fmt.Errorf("enable wings site: %w", err)
	}
	if err := im.runner.Run(ctx, "nginx", "-t"); err != nil {
		return fmt.Errorf("nginx config check: %w", err)
	}
	if err := im.runner.Run(ctx, "systemctl", "reload", "nginx"); err != nil {
		return fmt.Errorf("reload nginx: %w", err)
	}
	return nil
}

func (im *InstallationManager) installWingsUnit(ctx context.Context) error {
	tmpl, err := assets.Template("wings.service.tmpl")
	if err != nil {
		return err
	}
	unit := ServiceUnit{
		WorkingDirectory:   im.paths.WingsDataDir,
		ExecStart:          im.paths.WingsBinary + " --config " + filepath.Join(im.paths.WingsDir, "config.yml"),
		RestartSec:         5,
		StartLimitInterval: 180,
		StartLimitBurst:    5,
	}
	unitPath := filepath.Join(im.paths.UnitDir, wingsUnit)
	if err := render.File(wingsUnit, tmpl, unit, unitPath, 0644); err != nil {
		return err
	}
	if err := im.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("systemd reload: %w", err)
	}
	if err := im.runner.Run(ctx, "systemctl", "enable", "--now", wingsUnit); err != nil {
		return fmt.Errorf("enable wings: %w", err)
	}
	return nil
}

// waitForControlPort confirms the agent accepts connections shortly after
// start. Automation depends on a non-zero exit when this check fails, so
// exhausting the budget is fatal.
func (im *InstallationManager) waitForControlPort(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", WingsDaemonPort)
	for attempt := 1; attempt <= im.wingsPollAttempts; attempt++ {
		conn, err := im.dial("tcp", addr, im.wingsPollDelay)
		if err == nil {
			conn.Close()
			im.logger.Info().Int("attempt", attempt).Msg("node agent control port is up")
			return nil
		}
		im.logger.Debug().Int("attempt", attempt).Err(err).Msg("control port not ready")
		if attempt == im.wingsPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-im.after(im.wingsPollDelay):
		}
	}
	return fmt.Errorf("node agent control port %s not accepting connections after %d attempts",
		addr, im.wingsPollAttempts)
}

// hostMemoryMiB reads MemTotal from the kernel's meminfo table.
func (im *InstallationManager) hostMemoryMiB() (int64, error) {
	f, err := os.Open(im.paths.Meminfo)
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse MemTotal: %w", err)
			}
			return kb / 1024, nil
		}
	}
	return 0, fmt.Errorf("MemTotal not found in %s", im.paths.Meminfo)
}

func statfsTotalMiB(path string) (int64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bsize) * int64(st.Blocks) / (1024 * 1024), nil
}
