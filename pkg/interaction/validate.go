// pkg/interaction/validate.go
package interaction

import (
	"strings"
)

const (
	YesShort = "y"
	YesLong  = "yes"
	NoShort  = "n"
	NoLong   = "no"
)

// NormalizeYesNoInput parses y/yes/n/no case-insensitively. The second
// return value is false when the input is neither.
func NormalizeYesNoInput(input string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(input)) {
	case YesShort, YesLong:
		return true, true
	case NoShort, NoLong:
		return false, true
	}
	return false, false
}
