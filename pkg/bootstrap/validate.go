// pkg/bootstrap/validate.go
//
// Field validators. Each one accepts raw operator input and returns the
// normalised value, so flags, prompts and tests share one definition.

package bootstrap

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
)

// Field names a validated input.
type Field string

const (
	FieldNonEmpty  Field = "value"
	FieldVersion   Field = "version"
	FieldFQDN      Field = "fqdn"
	FieldPort      Field = "port"
	FieldUsername  Field = "username"
	FieldExtension Field = "extension"
)

var (
	versionPattern  = regexp.MustCompile(`^\d+(\.\d+)*$`)
	fqdnPattern     = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)
)

// Validate checks raw against the rules for field.
func Validate(field Field, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", eos_err.NewValidationErrorf("%s cannot be empty", field)
	}

	switch field {
	case FieldNonEmpty:
		return value, nil

	case FieldVersion:
		if !versionPattern.MatchString(value) {
			return "", eos_err.NewValidationError(
				"version must be a major version (e.g. 7) or exact version (e.g. 7.28.0), got "+value)
		}
		return value, nil

	case FieldFQDN:
		lower := strings.ToLower(value)
		if !fqdnPattern.MatchString(lower) {
			return "", eos_err.NewValidationError(
				value+" is not a fully qualified domain name",
				"Use a name like host.example.com")
		}
		return lower, nil

	case FieldPort:
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return "", eos_err.NewValidationErrorf("port must be between 1 and 65535, got %s", value)
		}
		return strconv.Itoa(port), nil

	case FieldUsername:
		if !usernamePattern.MatchString(value) {
			return "", eos_err.NewValidationErrorf("%s is not a valid account name", value)
		}
		return value, nil

	case FieldExtension:
		if !puppet.IsAllowedExtension(value) {
			return "", eos_err.NewValidationErrorf("%s is not a recognised CSR extension short name", value)
		}
		return value, nil
	}
	return "", eos_err.NewValidationErrorf("unknown field %q", field)
}

// validator adapts Validate for interaction.Prompter.PromptValidated.
func validator(field Field) func(string) (string, error) {
	return func(raw string) (string, error) { return Validate(field, raw) }
}

// ParseYesNo parses y, yes, n or no.
func ParseYesNo(raw string) (bool, error) {
	answer, ok := interaction.NormalizeYesNoInput(raw)
	if !ok {
		return false, eos_err.NewValidationErrorf("%q is not yes or no", raw)
	}
	return answer, nil
}

// DomainFromFQDN returns everything after the first label.
func DomainFromFQDN(fqdn string) string {
	_, domain, found := strings.Cut(fqdn, ".")
	if !found {
		return ""
	}
	return strings.TrimLeft(domain, ".")
}

// QualifyHostname appends domain to host when host has no dot in it.
func QualifyHostname(host, domain string) string {
	if strings.Contains(host, ".") || domain == "" {
		return host
	}
	return host + "." + strings.TrimLeft(domain, ".")
}
