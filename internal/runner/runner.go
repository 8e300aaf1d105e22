package runner

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Runner is the single primitive every stage uses to drive external tools.
// Each call captures the exit status and combined output uniformly, so no
// call site can silently ignore a failure.
type Runner interface {
	// Run executes a command and fails with its combined output on a
	// non-zero exit.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes a command and returns its standard output.
	Output(ctx context.Context, name string, args ...string) (string, error)
	// RunAs executes a command as another system account.
	RunAs(ctx context.Context, user, name string, args ...string) error
	// Shell executes a full shell pipeline. Only for steps that genuinely
	// need pipes or redirection (vendor install scripts, crontab edits).
	Shell(ctx context.Context, script string) error
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	logger zerolog.Logger
}

func NewExecRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{
		logger: logger.With().Str("component", "runner").Logger(),
	}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	r.logger.Debug().Str("cmd", name).Strs("args", redact(args)).Msg("executing command")

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output)))
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	r.logger.Debug().Str("cmd", name).Strs("args", redact(args)).Msg("executing command")

	output, err := cmd.Output()
	if err != nil {
		msg := err.Error()
		if ee, ok := err.(*exec.ExitError); ok {
			msg = tail(string(ee.Stderr))
		}
		return "", fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return string(output), nil
}

func (r *ExecRunner) RunAs(ctx context.Context, user, name string, args ...string) error {
	full := append([]string{"-u", user, "--", name}, args...)
	return r.Run(ctx, "sudo", full...)
}

func (r *ExecRunner) Shell(ctx context.Context, script string) error {
	return r.Run(ctx, "bash", "-c", script)
}

// tail keeps the last lines of tool output so errors stay readable while
// still carrying the diagnostic the operator needs.
func tail(output string) string {
	const maxLines = 15
	output = strings.TrimSpace(output)
	lines := strings.Split(output, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}

var (
	identifiedByRe = regexp.MustCompile(`(?i)(IDENTIFIED BY )'[^']*'`)
	daemonTokenRe  = regexp.MustCompile(`(daemon_token(?:_id)? = )'[^']*'`)
)

// redact hides values that follow password-carrying flags, and secrets
// embedded in SQL statements handed to the database CLI, in debug logs.
func redact(args []string) []string {
	out := make([]string, len(args))
	hideNext := false
	for i, a := range args {
		switch {
		case hideNext:
			out[i] = "****"
			hideNext = false
		case a == "--password" || a == "--pass" || a == "-p":
			out[i] = a
			hideNext = true
		case strings.HasPrefix(a, "--password="):
			out[i] = "--password=****"
		default:
			out[i] = redactStatement(a)
		}
	}
	return out
}

func redactStatement(arg string) string {
	arg = identifiedByRe.ReplaceAllString(arg, "${1}'****'")
	return daemonTokenRe.ReplaceAllString(arg, "${1}'****'")
}
