package manager

import (
	"context"
	"fmt"
	"regexp"
)

// validNameRe matches only alphanumeric characters and underscores. Names
// are interpolated into SQL passed to the mariadb CLI, so nothing else is
// allowed through.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateSQLName(name string) error {
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: only alphanumeric and underscore allowed", name)
	}
	return nil
}

// SetupDatastore creates the panel database and its loopback-scoped user.
// Every statement is guarded so a second run against existing objects is a
// no-op instead of an error; that is the contract re-running the installer
// relies on. The generated password must already be fixed at this point and
// is never regenerated afterwards.
func (im *InstallationManager) SetupDatastore(ctx context.Context) error {
	if err := validateSQLName(DatabaseName); err != nil {
		return err
	}
	if err := validateSQLName(DatabaseUser); err != nil {
		return err
	}
	if im.creds.DatabasePassword == "" {
		return fmt.Errorf("database password not generated before datastore stage")
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`;", DatabaseName),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%s' IDENTIFIED BY '%s';",
			DatabaseUser, DatabaseHost, im.creds.DatabasePassword),
		fmt.Sprintf("ALTER USER '%s'@'%s' IDENTIFIED BY '%s';",
			DatabaseUser, DatabaseHost, im.creds.DatabasePassword),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%s' WITH GRANT OPTION;",
			DatabaseName, DatabaseUser, DatabaseHost),
		"FLUSH PRIVILEGES;",
	}

	for _, stmt := range statements {
		if err := im.execSQL(ctx, stmt); err != nil {
			return fmt.Errorf("datastore setup: %w", err)
		}
	}

	im.logger.Info().
		Str("database", DatabaseName).
		Str("user", DatabaseUser).
		Msg("datastore ready")
	return nil
}

// execSQL runs a statement through the database engine's admin CLI as the
// local root account (socket auth).
func (im *InstallationManager) execSQL(ctx context.Context, stmt string) error {
	return im.runner.Run(ctx, "mariadb", "-u", "root", "-e", stmt)
}

// querySQL runs a query and returns the raw tab-separated output without
// headers.
func (im *InstallationManager) querySQL(ctx context.Context, query string) (string, error) {
	return im.runner.Output(ctx, "mariadb", "-u", "root", "-N", "-B", "-e", query)
}
