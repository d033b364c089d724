// pkg/packages/version.go

package packages

import (
	"regexp"
	"strings"

	cerr "github.com/cockroachdb/errors"
	goversion "github.com/hashicorp/go-version"
)

var exactVersionPrefix = regexp.MustCompile(`^\d+\.\d+\.\d+`)

// Version is a requested Puppet release: always a major, optionally an exact
// x.y.z pin.
type Version struct {
	Major string
	Exact string
}

func (v Version) String() string {
	if v.Exact != "" {
		return v.Exact
	}
	return v.Major
}

// SplitVersion derives (major, exact) from operator input. Major is the text
// before the first dot. Exact is set only when the input starts with
// digits.digits.digits.
func SplitVersion(raw string) Version {
	raw = strings.TrimSpace(raw)
	major, _, _ := strings.Cut(raw, ".")
	v := Version{Major: major}
	if exactVersionPrefix.MatchString(raw) {
		v.Exact = raw
	}
	return v
}

// SameMajor reports whether two requested versions share a major release.
// Agent and server packages of different majors cannot be co-installed.
func SameMajor(a, b string) (bool, error) {
	va, err := goversion.NewVersion(a)
	if err != nil {
		return false, cerr.Wrapf(err, "parse version %q", a)
	}
	vb, err := goversion.NewVersion(b)
	if err != nil {
		return false, cerr.Wrapf(err, "parse version %q", b)
	}
	return va.Segments()[0] == vb.Segments()[0], nil
}
