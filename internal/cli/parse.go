package cli

import (
	"errors"
	"fmt"

	"github.com/quillhost/installer/internal/types"
)

// errUsage marks every input problem the operator can fix on the command
// line. The CLI maps it to exit code 1 before anything touches the host.
var errUsage = errors.New("usage error")

// rawFlags mirrors the command line before any interpretation. Both flag
// spellings from the script era are accepted; the short form wins when both
// are given.
type rawFlags struct {
	domain      string
	panelDomain string

	ssl    bool
	useSSL bool

	email      string
	adminEmail string

	admin     string
	adminUser string

	first     string
	firstName string

	last     string
	lastName string

	pass      string
	adminPass string

	wings       bool
	deployWings bool

	nodeDomain    string
	tlsPolicy     string
	reservePolicy string
	timezone      string
	skipVerify    bool
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// buildRequest turns either positional arguments or flags into an
// InstallRequest. Positional order matches the historical invocation:
// domain ssl email user first last pass wings [nodeDomain].
func buildRequest(raw rawFlags, args []string) (*types.InstallRequest, error) {
	req := &types.InstallRequest{
		Timezone:   coalesce(raw.timezone, "Etc/UTC"),
		SkipVerify: raw.skipVerify,
	}

	tlsPolicy, err := types.ParseTLSPolicy(raw.tlsPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	req.TLSPolicy = tlsPolicy

	reserve, err := types.ParseReservePolicy(raw.reservePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	req.Reserve = reserve

	if len(args) > 0 {
		if len(args) < 8 || len(args) > 9 {
			return nil, fmt.Errorf("%w: positional form takes 8 or 9 arguments, got %d", errUsage, len(args))
		}
		req.Domain = args[0]
		if req.UseSSL, err = types.ParseBool(args[1]); err != nil {
			return nil, fmt.Errorf("%w: ssl: %v", errUsage, err)
		}
		req.AdminEmail = args[2]
		req.AdminUsername = args[3]
		req.FirstName = args[4]
		req.LastName = args[5]
		req.AdminPassword = args[6]
		if req.DeployWings, err = types.ParseBool(args[7]); err != nil {
			return nil, fmt.Errorf("%w: wings: %v", errUsage, err)
		}
		if len(args) == 9 {
			req.NodeDomain = args[8]
		}
		return req, nil
	}

	req.Domain = coalesce(raw.domain, raw.panelDomain)
	req.UseSSL = raw.ssl || raw.useSSL
	req.AdminEmail = coalesce(raw.email, raw.adminEmail)
	req.AdminUsername = coalesce(raw.admin, raw.adminUser)
	req.FirstName = coalesce(raw.first, raw.firstName)
	req.LastName = coalesce(raw.last, raw.lastName)
	req.AdminPassword = coalesce(raw.pass, raw.adminPass)
	req.DeployWings = raw.wings || raw.deployWings
	req.NodeDomain = raw.nodeDomain

	return req, nil
}
