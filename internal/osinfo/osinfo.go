package osinfo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	SupportedID      = "ubuntu"
	SupportedVersion = "22.04"

	DefaultOSReleasePath = "/etc/os-release"
)

// ErrUnsupported marks a host the installer refuses to touch. The CLI maps
// it to its own exit code so automation can tell it apart from stage
// failures.
var ErrUnsupported = errors.New("unsupported host")

// HostEnvironment is the distribution identity read once at startup.
type HostEnvironment struct {
	ID        string
	VersionID string
}

// Read parses an os-release style file (KEY=value, values optionally quoted).
func Read(path string) (HostEnvironment, error) {
	f, err := os.Open(path)
	if err != nil {
		return HostEnvironment{}, fmt.Errorf("read os-release: %w", err)
	}
	defer f.Close()

	env := HostEnvironment{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "ID":
			env.ID = strings.ToLower(value)
		case "VERSION_ID":
			env.VersionID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return HostEnvironment{}, fmt.Errorf("read os-release: %w", err)
	}
	return env, nil
}

// Supported reports whether the host matches the single supported target.
func (h HostEnvironment) Supported() bool {
	return h.ID == SupportedID && h.VersionID == SupportedVersion
}

// Validate confirms OS identity and privilege before anything mutates the
// host. euid is injectable so the check is testable without root.
func Validate(osReleasePath string, euid int) error {
	env, err := Read(osReleasePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if !env.Supported() {
		return fmt.Errorf("%w: detected %s %s, this installer supports %s %s only",
			ErrUnsupported, env.ID, env.VersionID, SupportedID, SupportedVersion)
	}
	if euid != 0 {
		return fmt.Errorf("%w: administrative privilege required, run as root", ErrUnsupported)
	}
	return nil
}
