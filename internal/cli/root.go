package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quillhost/installer/internal/logging"
	"github.com/quillhost/installer/internal/manager"
	"github.com/quillhost/installer/internal/osinfo"
	"github.com/quillhost/installer/internal/report"
	"github.com/quillhost/installer/internal/runner"
	"github.com/quillhost/installer/internal/secrets"
	"github.com/quillhost/installer/internal/types"
	"github.com/quillhost/installer/internal/ui"
	"github.com/quillhost/installer/internal/verify"
)

// Exit codes automation can rely on.
const (
	exitOK          = 0
	exitUsage       = 1
	exitUnsupported = 2
	exitStageFailed = 99
)

var (
	raw         rawFlags
	interactive bool
	debug       bool

	rootCmd = &cobra.Command{
		Use:   "panel-installer [domain ssl email user first last pass wings [nodeDomain]]",
		Short: "Install the management panel and its node agent on this host",
		Long: `Provisions a web hosting management panel on a single supported host:
system packages, datastore, application, background services, reverse
proxy, optional TLS, and optionally the companion node agent.`,
		Args:          cobra.MaximumNArgs(9),
		RunE:          runInstall,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		switch {
		case errors.Is(err, errUsage):
			ui.PrintBanner()
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			os.Exit(exitUsage)
		case errors.Is(err, osinfo.ErrUnsupported):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitUnsupported)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitStageFailed)
		}
	}
	os.Exit(exitOK)
}

func init() {
	f := rootCmd.Flags()

	f.StringVar(&raw.domain, "domain", "", "Panel domain name")
	f.StringVar(&raw.panelDomain, "panel-domain", "", "Alias for --domain")
	f.BoolVar(&raw.ssl, "ssl", false, "Request a TLS certificate for the panel domain")
	f.BoolVar(&raw.useSSL, "use-ssl", false, "Alias for --ssl")
	f.StringVar(&raw.email, "email", "", "Administrator email address")
	f.StringVar(&raw.adminEmail, "admin-email", "", "Alias for --email")
	f.StringVar(&raw.admin, "admin", "", "Administrator username")
	f.StringVar(&raw.adminUser, "admin-user", "", "Alias for --admin")
	f.StringVar(&raw.first, "first", "", "Administrator first name")
	f.StringVar(&raw.firstName, "first-name", "", "Alias for --first")
	f.StringVar(&raw.last, "last", "", "Administrator last name")
	f.StringVar(&raw.lastName, "last-name", "", "Alias for --last")
	f.StringVar(&raw.pass, "pass", "", "Administrator password")
	f.StringVar(&raw.adminPass, "admin-pass", "", "Alias for --pass")
	f.BoolVar(&raw.wings, "wings", false, "Also install the node agent")
	f.BoolVar(&raw.deployWings, "deploy-wings", false, "Alias for --wings")
	f.StringVar(&raw.nodeDomain, "node-domain", "", "Separate domain for the node agent API")
	f.StringVar(&raw.tlsPolicy, "tls-policy", string(types.TLSPolicyBestEffort),
		"How a certificate failure is treated: strict or best-effort")
	f.StringVar(&raw.reservePolicy, "reserve-policy", "percent:20",
		"Capacity held back from the node record: percent:N or fixed:MEM_MIB,DISK_MIB")
	f.StringVar(&raw.timezone, "timezone", "Etc/UTC", "Panel timezone")
	f.BoolVar(&raw.skipVerify, "skip-verify", false, "Skip the final health check")
	f.BoolVar(&interactive, "interactive", false, "Prompt for missing fields")
	f.BoolVar(&debug, "debug", false, "Verbose command logging")
}

func runInstall(cmd *cobra.Command, args []string) error {
	ui.PrintBanner(true)

	req, err := buildRequest(raw, args)
	if err != nil {
		return err
	}

	if interactive {
		if err := ui.CompleteRequest(req); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}

	// Validation precedes every mutation; a bad request leaves the host
	// untouched.
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if err := osinfo.Validate(osinfo.DefaultOSReleasePath, os.Geteuid()); err != nil {
		return err
	}

	logger := logging.New(logging.DefaultLogPath, debug).
		With().Str("run_id", uuid.NewString()).Logger()

	creds, err := generateCredentials(req)
	if err != nil {
		return err
	}

	im := manager.NewInstallationManager(runner.NewExecRunner(logger), req, creds, logger)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"Installing system packages", im.InstallPackages},
		{"Preparing datastore", im.SetupDatastore},
		{"Downloading panel release", im.FetchPanel},
		{"Building application dependencies", im.BuildDependencies},
		{"Configuring application", im.ConfigureApplication},
		{"Registering background services", im.RegisterServices},
		{"Configuring reverse proxy", im.SetupProxy},
	}
	if req.DeployWings {
		steps = append(steps, struct {
			name string
			fn   func(context.Context) error
		}{"Installing node agent", im.InstallWings})
	}

	spinner := ui.NewStepSpinner()
	for _, step := range steps {
		spinner.Start(step.name)
		if err := step.fn(cmd.Context()); err != nil {
			spinner.Stop(false)
			logger.Error().Err(err).Str("stage", step.name).Msg("stage failed")
			return fmt.Errorf("%s: %w", step.name, err)
		}
		spinner.Stop(true)
	}

	if !req.SkipVerify {
		checker := verify.NewChecker(logger)
		if err := checker.WaitHealthy(cmd.Context(), req.BaseURL()); err != nil {
			ui.PrintWarning("panel did not answer yet: %v", err)
			ui.PrintWarning("check it manually once DNS and services have settled")
		}
	}

	summary := report.Summary{
		PanelURL:         req.BaseURL(),
		AdminEmail:       req.AdminEmail,
		AdminUsername:    req.AdminUsername,
		DatabaseHost:     manager.DatabaseHost,
		DatabaseName:     manager.DatabaseName,
		DatabaseUser:     manager.DatabaseUser,
		DatabasePassword: creds.DatabasePassword,
		WingsInstalled:   req.DeployWings,
		NodeDomain:       req.NodeDomain,
		NodeTokenID:      creds.NodeTokenID,
		FinishedAt:       time.Now(),
	}
	if err := report.Write(report.DefaultPath, summary); err != nil {
		return err
	}

	ui.PrintSuccess(req.BaseURL(), report.DefaultPath)
	return nil
}

// generateCredentials produces every secret of the run up front. Nothing
// may regenerate them later: the datastore stage persists them into
// external state.
func generateCredentials(req *types.InstallRequest) (*types.Credentials, error) {
	creds := &types.Credentials{}

	var err error
	if creds.DatabasePassword, err = secrets.GeneratePassword(); err != nil {
		return nil, fmt.Errorf("generate database password: %w", err)
	}
	if req.DeployWings {
		if creds.NodeTokenID, err = secrets.Generate(16); err != nil {
			return nil, fmt.Errorf("generate node token id: %w", err)
		}
		if creds.NodeToken, err = secrets.Generate(24); err != nil {
			return nil, fmt.Errorf("generate node token: %w", err)
		}
	}
	return creds, nil
}
