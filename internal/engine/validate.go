package engine

import (
	"regexp"

	"github.com/robertjbass/spindb/internal/errs"
)

var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,62}$`)
var databaseNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateContainerName enforces §3's container name grammar.
func ValidateContainerName(name string) error {
	if !nameRe.MatchString(name) {
		return errs.New(errs.KindInvalidName, "invalid container name: "+name)
	}
	return nil
}

// ValidateDatabaseName enforces §3's database name grammar, used by
// every adapter's CreateDatabase/DropDatabase/RunScript/ExecuteQuery to
// reject names outside the allowed grammar before they reach a shell or
// SQL statement (§4.9).
func ValidateDatabaseName(name string) error {
	if !databaseNameRe.MatchString(name) {
		return errs.New(errs.KindInvalidDatabaseName, "invalid database name: "+name)
	}
	return nil
}
