package manager

import (
	"fmt"
	"runtime"
	"time"
)

const (
	ServiceUser  = "www-data"
	ServiceGroup = "www-data"

	PHPVersion = "8.1"

	DatabaseHost = "127.0.0.1"
	DatabasePort = "3306"
	DatabaseName = "panel"
	DatabaseUser = "pterodactyl"

	PanelArchiveURL = "https://github.com/pterodactyl/panel/releases/latest/download/panel.tar.gz"

	RedisHost = "127.0.0.1"
	RedisPort = "6379"

	// Wings listens for panel API calls on the daemon port and serves SFTP
	// on its own port.
	WingsDaemonPort = 8080
	WingsSFTPPort   = 2022
	WingsVhostPort  = 8443

	WingsPollAttempts = 15
	WingsPollDelay    = 2 * time.Second

	NodeLocationShort = "local"
	NodeLocationLong  = "Installed by quillhost installer"
)

// WingsBinaryURL resolves the node agent download for the host architecture.
func WingsBinaryURL() string {
	arch := "amd64"
	if runtime.GOARCH == "arm64" {
		arch = "arm64"
	}
	return fmt.Sprintf("https://github.com/pterodactyl/wings/releases/latest/download/wings_linux_%s", arch)
}
