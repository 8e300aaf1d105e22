package report

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultPath is readable by the privileged account only.
const DefaultPath = "/root/panel-install-summary.txt"

// Summary is the single durable artifact this installer produces itself:
// everything the operator needs after the run, including the generated
// datastore credentials.
type Summary struct {
	PanelURL         string
	AdminEmail       string
	AdminUsername    string
	DatabaseHost     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	WingsInstalled   bool
	NodeDomain       string
	NodeTokenID      string
	FinishedAt       time.Time
}

// Write renders the summary and stores it with owner-only permissions.
func Write(path string, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Panel installation summary (%s)\n", s.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "================================================\n\n")
	fmt.Fprintf(&b, "Panel URL:          %s\n", s.PanelURL)
	fmt.Fprintf(&b, "Admin email:        %s\n", s.AdminEmail)
	fmt.Fprintf(&b, "Admin username:     %s\n", s.AdminUsername)
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Database host:      %s\n", s.DatabaseHost)
	fmt.Fprintf(&b, "Database name:      %s\n", s.DatabaseName)
	fmt.Fprintf(&b, "Database user:      %s\n", s.DatabaseUser)
	fmt.Fprintf(&b, "Database password:  %s\n", s.DatabasePassword)

	if s.WingsInstalled {
		fmt.Fprintf(&b, "\n")
		fmt.Fprintf(&b, "Node agent:         installed\n")
		if s.NodeDomain != "" {
			fmt.Fprintf(&b, "Node domain:        %s\n", s.NodeDomain)
		}
		fmt.Fprintf(&b, "Node token id:      %s\n", s.NodeTokenID)
		fmt.Fprintf(&b, "Node config:        /etc/wings/config.yml\n")
	}

	fmt.Fprintf(&b, "\nKeep this file private: it contains generated credentials.\n")

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
