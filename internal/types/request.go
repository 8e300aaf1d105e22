package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TLSPolicy controls how a certificate-issuance failure is treated.
type TLSPolicy string

const (
	// TLSPolicyStrict aborts the whole run when certbot fails.
	TLSPolicyStrict TLSPolicy = "strict"
	// TLSPolicyBestEffort logs a warning and continues over plain HTTP.
	TLSPolicyBestEffort TLSPolicy = "best-effort"
)

// InstallRequest holds every user-supplied parameter for a run. It is built
// once by the CLI, validated, and never mutated afterwards.
type InstallRequest struct {
	Domain        string `validate:"required,fqdn"`
	UseSSL        bool
	TLSPolicy     TLSPolicy `validate:"required,oneof=strict best-effort"`
	AdminEmail    string    `validate:"required,email"`
	AdminUsername string    `validate:"required,alphanum,min=3"`
	FirstName     string    `validate:"required"`
	LastName      string    `validate:"required"`
	AdminPassword string    `validate:"required,min=8"`
	Timezone      string    `validate:"required"`
	DeployWings   bool
	NodeDomain    string `validate:"omitempty,fqdn"`
	Reserve       ReservePolicy
	SkipVerify    bool
}

var validate = validator.New()

func (r *InstallRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var errs validator.ValidationErrors
		if ok := AsValidationErrors(err, &errs); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("invalid request: field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// AsValidationErrors is a tiny shim so callers do not need to import the
// validator package for the error type assertion.
func AsValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}

// BaseURL returns the public panel URL with the scheme chosen by the SSL flag.
func (r *InstallRequest) BaseURL() string {
	if r.UseSSL {
		return "https://" + r.Domain
	}
	return "http://" + r.Domain
}

// ParseBool accepts the boolean spellings the shell-era invocations used.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}

// ParseTLSPolicy validates the --tls-policy flag value.
func ParseTLSPolicy(s string) (TLSPolicy, error) {
	switch TLSPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case TLSPolicyStrict:
		return TLSPolicyStrict, nil
	case TLSPolicyBestEffort, "":
		return TLSPolicyBestEffort, nil
	}
	return "", fmt.Errorf("invalid TLS policy %q: want strict or best-effort", s)
}

// Credentials holds the secrets generated once per run. They are created
// before the datastore stage and must never be regenerated afterwards, or
// the external database state would no longer match.
type Credentials struct {
	DatabasePassword string
	NodeTokenID      string
	NodeToken        string
}
