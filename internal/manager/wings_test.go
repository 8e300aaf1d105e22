package manager

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeMeminfo(t *testing.T, im *InstallationManager, totalKB string) {
	t.Helper()
	content := "MemTotal:       " + totalKB + " kB\nMemFree:        123456 kB\n"
	require.NoError(t, os.WriteFile(im.paths.Meminfo, []byte(content), 0644))
}

// scriptQueries answers the location and node lookups: empty until the
// matching create ran, then the given ids.
func scriptQueries(fake *fakeRunner) {
	fake.outputFn = func(c call) (string, error) {
		l := c.line()
		switch {
		case strings.Contains(l, ".locations"):
			if fake.has("p:location:make") {
				return "1", nil
			}
			return "", nil
		case strings.Contains(l, ".nodes"):
			if fake.has("p:node:make") {
				return "5\tuuid-abc", nil
			}
			return "", nil
		}
		return "", nil
	}
}

func TestRegisterNode_CreatesRecordsAndStampsToken(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	writeMeminfo(t, im, "8388608") // 8192 MiB
	scriptQueries(fake)

	node, err := im.registerNode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), node.ID)
	assert.Equal(t, "uuid-abc", node.UUID)

	assert.True(t, fake.has("p:location:make"))
	nodeMake := fake.lines()[fake.indexOf("p:node:make")]
	assert.Contains(t, nodeMake, "--fqdn panel.example.com")
	assert.Contains(t, nodeMake, "--maxMemory 6553", "80 percent of 8192 MiB, floored")
	assert.Contains(t, nodeMake, "--maxDisk 81920", "80 percent of the 102400 MiB filesystem")
	assert.Contains(t, nodeMake, "--scheme http")

	stamp := fake.lines()[fake.indexOf("UPDATE panel.nodes SET daemon_token_id")]
	assert.Contains(t, stamp, testCredentials().NodeTokenID)
	assert.Contains(t, stamp, "WHERE id = 5")
}

func TestRegisterNode_ReusesExistingRecords(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	writeMeminfo(t, im, "8388608")
	fake.outputFn = func(c call) (string, error) {
		if strings.Contains(c.line(), ".locations") {
			return "1", nil
		}
		return "7\tuuid-existing", nil
	}

	node, err := im.registerNode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), node.ID)
	assert.False(t, fake.has("p:location:make"), "existing location must be reused")
	assert.False(t, fake.has("p:node:make"), "existing node must be reused")
	assert.True(t, fake.has("UPDATE panel.nodes SET daemon_token_id"),
		"token is stamped even on reuse so the rendered config matches")
}

func TestRegisterNode_UsesNodeDomainAndHTTPSScheme(t *testing.T) {
	req := testRequest()
	req.UseSSL = true
	req.DeployWings = true
	req.NodeDomain = "node.example.com"
	im, fake := newTestManager(t, req)
	writeMeminfo(t, im, "8388608")
	scriptQueries(fake)

	_, err := im.registerNode(context.Background())
	require.NoError(t, err)

	nodeMake := fake.lines()[fake.indexOf("p:node:make")]
	assert.Contains(t, nodeMake, "--fqdn node.example.com")
	assert.Contains(t, nodeMake, "--scheme https")
}

func TestWriteWingsConfig(t *testing.T) {
	im, _ := newTestManager(t, testRequest())

	require.NoError(t, im.writeWingsConfig(nodeIdentity{ID: 5, UUID: "uuid-abc"}, false))

	path := filepath.Join(im.paths.WingsDir, "config.yml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "config holds the daemon token")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg WingsConfig
	require.NoError(t, yaml.Unmarshal(raw, &cfg))
	assert.Equal(t, "uuid-abc", cfg.UUID)
	assert.Equal(t, testCredentials().NodeToken, cfg.Token)
	assert.Equal(t, WingsDaemonPort, cfg.API.Port)
	assert.Equal(t, WingsSFTPPort, cfg.System.SFTP.BindPort)
	assert.Equal(t, "http://panel.example.com", cfg.Remote)
	assert.False(t, cfg.API.SSL.Enabled)
}

func TestWriteWingsConfig_TLSPointsAtNodeCertificate(t *testing.T) {
	req := testRequest()
	req.UseSSL = true
	req.NodeDomain = "node.example.com"
	im, _ := newTestManager(t, req)

	require.NoError(t, im.writeWingsConfig(nodeIdentity{ID: 5, UUID: "uuid-abc"}, true))

	raw, err := os.ReadFile(filepath.Join(im.paths.WingsDir, "config.yml"))
	require.NoError(t, err)
	var cfg WingsConfig
	require.NoError(t, yaml.Unmarshal(raw, &cfg))
	assert.True(t, cfg.API.SSL.Enabled)
	assert.Contains(t, cfg.API.SSL.Cert, "node.example.com")
	assert.Equal(t, "https://panel.example.com", cfg.Remote)
}

func TestInstallDocker_SkipsInstallWhenPresent(t *testing.T) {
	im, fake := newTestManager(t, testRequest())

	require.NoError(t, im.installDocker(context.Background()))
	assert.False(t, fake.has("get.docker.com"))
	assert.True(t, fake.has("enable --now docker"))
}

func TestInstallDocker_InstallsWhenMissing(t *testing.T) {
	im, fake := newTestManager(t, testRequest())
	fake.runErr = func(c call) error {
		if c.name == "docker" {
			return errors.New("command not found")
		}
		return nil
	}

	require.NoError(t, im.installDocker(context.Background()))
	assert.True(t, fake.has("get.docker.com"))
}

func TestWaitForControlPort_SucceedsOnLaterAttempt(t *testing.T) {
	im, _ := newTestManager(t, testRequest())
	attempts := 0
	im.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		server.Close()
		return client, nil
	}

	require.NoError(t, im.waitForControlPort(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestWaitForControlPort_FatalAfterBudget(t *testing.T) {
	im, _ := newTestManager(t, testRequest())
	im.wingsPollAttempts = 4
	waits := 0
	im.after = func(time.Duration) <-chan time.Time {
		waits++
		ch := make(chan time.Time)
		close(ch)
		return ch
	}

	err := im.waitForControlPort(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, 3, waits, "no wait after the final attempt")
}

func TestWaitForControlPort_CancelStopsPolling(t *testing.T) {
	im, _ := newTestManager(t, testRequest())
	im.after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := im.waitForControlPort(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstallWings_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wings-binary"))
	}))
	defer srv.Close()

	req := testRequest()
	req.DeployWings = true
	im, fake := newTestManager(t, req)
	im.wingsBinaryURL = srv.URL + "/wings_linux_amd64"
	require.NoError(t, os.MkdirAll(filepath.Dir(im.paths.WingsBinary), 0755))
	writeMeminfo(t, im, "8388608")
	scriptQueries(fake)
	im.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		server.Close()
		return client, nil
	}

	require.NoError(t, im.InstallWings(context.Background()))

	info, err := os.Stat(im.paths.WingsBinary)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	assert.FileExists(t, filepath.Join(im.paths.WingsDir, "config.yml"))
	assert.True(t, fake.has("enable --now "+wingsUnit))
	assert.False(t, fake.has("certbot"), "no certificate without SSL and a node domain")
}

func TestHostMemoryMiB(t *testing.T) {
	im, _ := newTestManager(t, testRequest())
	writeMeminfo(t, im, "16777216")

	got, err := im.hostMemoryMiB()
	require.NoError(t, err)
	assert.Equal(t, int64(16384), got)
}

func TestHostMemoryMiB_MissingEntry(t *testing.T) {
	im, _ := newTestManager(t, testRequest())
	require.NoError(t, os.WriteFile(im.paths.Meminfo, []byte("MemFree: 1 kB\n"), 0644))

	_, err := im.hostMemoryMiB()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MemTotal")
}
