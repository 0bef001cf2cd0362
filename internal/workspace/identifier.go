package workspace

import (
	"regexp"
	"strconv"
	"strings"
)

var issueIdentifierRe = regexp.MustCompile(`^([A-Za-z]+)-(\d+)$`)

// ParseIssueIdentifier splits "FAVRES-123" into the upper-cased team key and
// the issue number. The whole string must match; surrounding whitespace is
// rejected.
func ParseIssueIdentifier(identifier string) (teamKey string, number int, err error) {
	m := issueIdentifierRe.FindStringSubmatch(identifier)
	if m == nil {
		return "", 0, &InvalidIdentifierError{Identifier: identifier}
	}
	number, err = strconv.Atoi(m[2])
	if err != nil {
		// Digit runs too long for int are still well-formed identifiers.
		number = -1
	}
	return NormalizeTeamKey(m[1]), number, nil
}

// NormalizeTeamKey upper-cases a team key for lookups and cache keys.
func NormalizeTeamKey(key string) string {
	return strings.ToUpper(key)
}
