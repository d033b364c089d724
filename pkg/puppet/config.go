// pkg/puppet/config.go

package puppet

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	DefaultPuppetBin  = "/opt/puppetlabs/bin/puppet"
	DefaultConfigFile = "/etc/puppetlabs/puppet/puppet.conf"
)

// Sections accepted by puppet config set.
var Sections = []string{"main", "agent", "server", "master", "user"}

// Setting is one puppet.conf key in a section.
type Setting struct {
	Section string
	Key     string
	Value   string
}

func (s Setting) String() string {
	return fmt.Sprintf("[%s] %s = %s", s.Section, s.Key, s.Value)
}

// Client drives the puppet binary.
type Client struct {
	Runner     execute.Runner
	Bin        string
	ConfigFile string
	// Out receives live output of agent and apply runs.
	Out io.Writer
}

// NewClient returns a Client for bin, falling back to the default install path.
func NewClient(runner execute.Runner, bin string) *Client {
	if bin == "" {
		bin = DefaultPuppetBin
	}
	return &Client{Runner: runner, Bin: bin, ConfigFile: DefaultConfigFile, Out: os.Stdout}
}

func validSection(s string) bool {
	for _, v := range Sections {
		if v == s {
			return true
		}
	}
	return false
}

// SetConfig applies settings in order. Any failure stops the sequence.
func (c *Client) SetConfig(rc *eos_io.RuntimeContext, settings []Setting) error {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	for _, s := range settings {
		if !validSection(s.Section) {
			return eos_err.NewValidationErrorf("invalid puppet.conf section %q (allowed: %s)",
				s.Section, strings.Join(Sections, ", "))
		}
	}
	if !eos_io.FileExists(c.Bin) {
		return eos_err.NewEnvironmentError(fmt.Sprintf("could not find the puppet command at %s", c.Bin), nil,
			"Check the package installed correctly or pass --puppet-agent-path")
	}
	if !eos_io.FileExists(c.ConfigFile) {
		return eos_err.NewEnvironmentError(fmt.Sprintf("could not find the puppet configuration file at %s", c.ConfigFile), nil)
	}

	// INTERVENE
	for _, s := range settings {
		logger.Info("Setting puppet configuration", zap.String("setting", s.String()))
		_, err := c.Runner.Run(rc.Ctx, execute.Options{
			Command: c.Bin,
			Args:    []string{"config", "set", s.Key, s.Value, "--config", c.ConfigFile, "--section", s.Section},
		})
		if err != nil {
			return cerr.Wrapf(err, "set configuration option %s = %s", s.Key, s.Value)
		}
	}
	return nil
}
