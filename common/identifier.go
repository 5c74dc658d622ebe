package common

import (
	"regexp"

	"github.com/pkg/errors"
)

// identifierRe is the allow-list for anything interpolated into a query in an
// identifier position (project, dataset, table names). Values are matched at
// configuration load so adapters never see an unvalidated identifier.
var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateIdentifier rejects storage identifiers containing anything outside
// [A-Za-z0-9_-]. The name argument only labels the error.
func ValidateIdentifier(name, value string) error {
	if value == "" {
		return errors.Errorf("%s is empty", name)
	}

	if !identifierRe.MatchString(value) {
		return errors.Errorf("%s %q contains characters outside [A-Za-z0-9_-]", name, value)
	}

	return nil
}
