package manager

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhost/installer/internal/types"
)

// call is one recorded external invocation.
type call struct {
	user   string
	name   string
	args   []string
	script string
}

func (c call) line() string {
	if c.script != "" {
		return "bash -c " + c.script
	}
	parts := append([]string{c.name}, c.args...)
	return strings.Join(parts, " ")
}

// fakeRunner records every invocation instead of executing it. Behavior is
// scripted per test through runErr and outputFn.
type fakeRunner struct {
	calls    []call
	runErr   func(c call) error
	outputFn func(c call) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	c := call{name: name, args: args}
	f.calls = append(f.calls, c)
	if f.runErr != nil {
		return f.runErr(c)
	}
	return nil
}

func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	c := call{name: name, args: args}
	f.calls = append(f.calls, c)
	if f.outputFn != nil {
		return f.outputFn(c)
	}
	return "", nil
}

func (f *fakeRunner) RunAs(ctx context.Context, user, name string, args ...string) error {
	c := call{user: user, name: name, args: args}
	f.calls = append(f.calls, c)
	if f.runErr != nil {
		return f.runErr(c)
	}
	return nil
}

func (f *fakeRunner) Shell(ctx context.Context, script string) error {
	c := call{name: "bash", script: script}
	f.calls = append(f.calls, c)
	if f.runErr != nil {
		return f.runErr(c)
	}
	return nil
}

func (f *fakeRunner) lines() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.line()
	}
	return out
}

func (f *fakeRunner) has(substr string) bool {
	for _, l := range f.lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func (f *fakeRunner) indexOf(substr string) int {
	for i, l := range f.lines() {
		if strings.Contains(l, substr) {
			return i
		}
	}
	return -1
}

func testRequest() *types.InstallRequest {
	return &types.InstallRequest{
		Domain:        "panel.example.com",
		UseSSL:        false,
		TLSPolicy:     types.TLSPolicyBestEffort,
		AdminEmail:    "admin@example.com",
		AdminUsername: "admin",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		AdminPassword: "supersecret1",
		Timezone:      "Etc/UTC",
		Reserve:       types.DefaultReservePolicy(),
	}
}

func testCredentials() *types.Credentials {
	return &types.Credentials{
		DatabasePassword: "GeneratedPassword1234",
		NodeTokenID:      "TokenId1234567890",
		NodeToken:        "NodeTokenSecretValue0123",
	}
}

// newTestManager wires a manager against temp paths and a fake runner.
func newTestManager(t *testing.T, req *types.InstallRequest) (*InstallationManager, *fakeRunner) {
	t.Helper()
	fake := &fakeRunner{}
	im := NewInstallationManager(fake, req, testCredentials(), zerolog.Nop())

	root := t.TempDir()
	im.SetPaths(Paths{
		AppDir:         filepath.Join(root, "app"),
		Meminfo:        filepath.Join(root, "meminfo"),
		NginxAvailable: filepath.Join(root, "nginx", "sites-available"),
		NginxEnabled:   filepath.Join(root, "nginx", "sites-enabled"),
		UnitDir:        filepath.Join(root, "systemd"),
		WingsDir:       filepath.Join(root, "wings-etc"),
		WingsBinary:    filepath.Join(root, "wings-bin", "wings"),
		WingsDataDir:   filepath.Join(root, "wings-data"),
		LetsEncryptDir: filepath.Join(root, "letsencrypt"),
	})

	im.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time)
		close(ch)
		return ch
	}
	im.wingsPollDelay = time.Millisecond
	im.diskTotalMiB = func(string) (int64, error) { return 102400, nil }
	im.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial"}
	}
	return im, fake
}
